package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"paperTrader/internal/domain"
	"paperTrader/internal/ports"
)

// ApplyFill applies one fill as a single SQLite transaction. The order,
// account and position rows are re-read inside the transaction so the cash
// and quantity checks hold regardless of what the caller saw before. On any
// violation the transaction rolls back and nothing is applied.
func (r *Repository) ApplyFill(ctx context.Context, req *ports.FillRequest) (*ports.FillResult, error) {
	op := "ApplyFill"

	if req == nil || req.Order == nil {
		return nil, fmt.Errorf("%s: fill request is missing an order: %w", op, ports.ErrInvalidRequest)
	}
	if !req.Quantity.IsPositive() {
		return nil, fmt.Errorf("%s: fill quantity %s must be positive: %w", op, req.Quantity, ports.ErrInvalidRequest)
	}
	if !req.Price.IsPositive() {
		return nil, fmt.Errorf("%s: fill price %s must be positive: %w", op, req.Price, ports.ErrInvalidRequest)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to begin transaction: %w", op, err)
	}
	defer tx.Rollback() // no-op after commit

	// Re-read the order so status and filled quantity are current.
	order, err := scanOrder(tx.QueryRowContext(ctx, selectOrders+` WHERE id = ?`, req.Order.ID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: order %d: %w", op, req.Order.ID, ports.ErrNotFound)
		}
		return nil, fmt.Errorf("%s: failed to load order %d: %w", op, req.Order.ID, err)
	}
	if order.Status.IsTerminal() {
		return nil, fmt.Errorf("%s: order %d is %s: %w", op, order.ID, order.Status, ports.ErrOrderTerminal)
	}
	if req.Quantity.GreaterThan(order.RemainingQuantity()) {
		return nil, fmt.Errorf("%s: fill quantity %s exceeds remaining %s on order %d: %w",
			op, req.Quantity, order.RemainingQuantity(), order.ID, ports.ErrInvalidRequest)
	}

	account, err := scanAccount(tx.QueryRowContext(ctx,
		`SELECT id, cash_balance, strategy_id, auto_execute, created_at FROM accounts WHERE id = ?`,
		order.AccountID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: account %s: %w", op, order.AccountID, ports.ErrNotFound)
		}
		return nil, fmt.Errorf("%s: failed to load account %s: %w", op, order.AccountID, err)
	}

	position, err := scanPosition(tx.QueryRowContext(ctx,
		selectPositions+` WHERE account_id = ? AND symbol = ?`, order.AccountID, order.Symbol))
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: failed to load position %s/%s: %w", op, order.AccountID, order.Symbol, err)
	}
	if errors.Is(err, sql.ErrNoRows) {
		position = nil
	}

	var (
		newCash        decimal.Decimal
		realizedPNL    = decimal.Zero
		positionClosed bool
	)

	switch order.Side {
	case domain.Buy:
		cost := req.Quantity.Mul(req.Price)
		if cost.GreaterThan(account.CashBalance) {
			return nil, fmt.Errorf("%s: order %d needs %s but account %s holds %s: %w",
				op, order.ID, cost, account.ID, account.CashBalance, ports.ErrInsufficientFunds)
		}
		newCash = account.CashBalance.Sub(cost)

		if position == nil {
			_, err = tx.ExecContext(ctx, `
			INSERT INTO positions (account_id, symbol, quantity, average_entry_price, current_price, unrealized_pnl, updated_at)
			VALUES (?, ?, ?, ?, ?, '0', ?)`,
				order.AccountID, order.Symbol, req.Quantity.String(), req.Price.String(), req.Price.String(), req.ExecutedAt)
			if err != nil {
				return nil, fmt.Errorf("%s: failed to open position %s/%s: %w", op, order.AccountID, order.Symbol, err)
			}
		} else {
			avg := position.WeightedAveragePrice(req.Quantity, req.Price)
			newQty := position.Quantity.Add(req.Quantity)
			_, err = tx.ExecContext(ctx,
				`UPDATE positions SET quantity = ?, average_entry_price = ?, updated_at = ? WHERE id = ?`,
				newQty.String(), avg.String(), req.ExecutedAt, position.ID)
			if err != nil {
				return nil, fmt.Errorf("%s: failed to grow position %d: %w", op, position.ID, err)
			}
		}

	case domain.Sell:
		if position == nil {
			return nil, fmt.Errorf("%s: order %d sells %s but account %s holds no position: %w",
				op, order.ID, order.Symbol, order.AccountID, ports.ErrInsufficientQuantity)
		}
		if req.Quantity.GreaterThan(position.Quantity) {
			return nil, fmt.Errorf("%s: order %d sells %s but account %s holds %s: %w",
				op, order.ID, req.Quantity, order.AccountID, position.Quantity, ports.ErrInsufficientQuantity)
		}
		proceeds := req.Quantity.Mul(req.Price)
		newCash = account.CashBalance.Add(proceeds)
		realizedPNL = req.Price.Sub(position.AverageEntryPrice).Mul(req.Quantity)

		newQty := position.Quantity.Sub(req.Quantity)
		if newQty.IsZero() {
			if _, err = tx.ExecContext(ctx, `DELETE FROM positions WHERE id = ?`, position.ID); err != nil {
				return nil, fmt.Errorf("%s: failed to close position %d: %w", op, position.ID, err)
			}
			positionClosed = true
		} else {
			_, err = tx.ExecContext(ctx,
				`UPDATE positions SET quantity = ?, updated_at = ? WHERE id = ?`,
				newQty.String(), req.ExecutedAt, position.ID)
			if err != nil {
				return nil, fmt.Errorf("%s: failed to reduce position %d: %w", op, position.ID, err)
			}
		}

	default:
		return nil, fmt.Errorf("%s: order %d has unknown side %q: %w", op, order.ID, order.Side, ports.ErrInvalidRequest)
	}

	if _, err = tx.ExecContext(ctx, `UPDATE accounts SET cash_balance = ? WHERE id = ?`,
		newCash.String(), account.ID); err != nil {
		return nil, fmt.Errorf("%s: failed to update cash for account %s: %w", op, account.ID, err)
	}

	trade := &domain.Trade{
		OrderID:     order.ID,
		AccountID:   order.AccountID,
		Symbol:      order.Symbol,
		Side:        order.Side,
		Quantity:    req.Quantity,
		Price:       req.Price,
		RealizedPNL: realizedPNL,
		ExecutedAt:  req.ExecutedAt,
	}
	result, err := tx.ExecContext(ctx, `
	INSERT INTO trades (order_id, account_id, symbol, side, quantity, price, realized_pnl, executed_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		trade.OrderID, trade.AccountID, trade.Symbol, trade.Side,
		trade.Quantity.String(), trade.Price.String(), trade.RealizedPNL.String(), trade.ExecutedAt)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to insert trade for order %d: %w", op, order.ID, err)
	}
	if trade.ID, err = result.LastInsertId(); err != nil {
		return nil, fmt.Errorf("%s: failed to get trade ID for order %d: %w", op, order.ID, err)
	}

	// Advance the order. Average fill price is volume-weighted across fills.
	newFilledQty := order.FilledQuantity.Add(req.Quantity)
	prevNotional := order.FilledQuantity.Mul(order.FilledPrice)
	newFilledPrice := prevNotional.Add(req.Quantity.Mul(req.Price)).Div(newFilledQty)
	newStatus := domain.StatusPartiallyFilled
	if newFilledQty.Equal(order.Quantity) {
		newStatus = domain.StatusFilled
	}
	_, err = tx.ExecContext(ctx, `
	UPDATE orders SET status = ?, filled_quantity = ?, filled_price = ?, filled_at = ? WHERE id = ?`,
		newStatus, newFilledQty.String(), newFilledPrice.String(), req.ExecutedAt, order.ID)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to update order %d: %w", op, order.ID, err)
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("%s: failed to commit fill for order %d: %w", op, order.ID, err)
	}

	// Reflect the committed state back onto the caller's order.
	req.Order.Status = newStatus
	req.Order.FilledQuantity = newFilledQty
	req.Order.FilledPrice = newFilledPrice
	req.Order.FilledAt = req.ExecutedAt

	r.logger.Info(ctx, "Fill applied", map[string]interface{}{
		"orderID":  order.ID,
		"symbol":   order.Symbol,
		"side":     order.Side,
		"quantity": req.Quantity.String(),
		"price":    req.Price.String(),
		"status":   string(newStatus),
		"newCash":  newCash.String(),
	})

	return &ports.FillResult{
		Trade:          trade,
		NewCashBalance: newCash,
		PositionClosed: positionClosed,
	}, nil
}

// RejectOrder marks a non-terminal order REJECTED with a reason. The status
// guard is in the WHERE clause so a concurrent fill cannot be overwritten.
func (r *Repository) RejectOrder(ctx context.Context, orderID int64, reason string) error {
	op := "RejectOrder"

	result, err := r.db.ExecContext(ctx,
		`UPDATE orders SET status = ?, reason = ? WHERE id = ? AND status IN (?, ?)`,
		domain.StatusRejected, reason, orderID, domain.StatusPending, domain.StatusPartiallyFilled)
	if err != nil {
		return fmt.Errorf("%s: failed to reject order %d: %w", op, orderID, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: failed to get rows affected for order %d: %w", op, orderID, err)
	}
	if rowsAffected == 0 {
		// Either the order does not exist or it is already terminal.
		order, findErr := r.FindOrderByID(ctx, orderID)
		if findErr != nil {
			return findErr
		}
		if order == nil {
			return fmt.Errorf("%s: order %d: %w", op, orderID, ports.ErrNotFound)
		}
		return fmt.Errorf("%s: order %d is %s: %w", op, orderID, order.Status, ports.ErrOrderTerminal)
	}

	r.logger.Info(ctx, "Order rejected", map[string]interface{}{"orderID": orderID, "reason": reason})
	return nil
}

// CancelOrder marks a non-terminal order CANCELLED. Fills already applied
// stay applied.
func (r *Repository) CancelOrder(ctx context.Context, orderID int64) error {
	op := "CancelOrder"

	result, err := r.db.ExecContext(ctx,
		`UPDATE orders SET status = ? WHERE id = ? AND status IN (?, ?)`,
		domain.StatusCancelled, orderID, domain.StatusPending, domain.StatusPartiallyFilled)
	if err != nil {
		return fmt.Errorf("%s: failed to cancel order %d: %w", op, orderID, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: failed to get rows affected for order %d: %w", op, orderID, err)
	}
	if rowsAffected == 0 {
		order, findErr := r.FindOrderByID(ctx, orderID)
		if findErr != nil {
			return findErr
		}
		if order == nil {
			return fmt.Errorf("%s: order %d: %w", op, orderID, ports.ErrNotFound)
		}
		return fmt.Errorf("%s: order %d is %s: %w", op, orderID, order.Status, ports.ErrOrderTerminal)
	}

	r.logger.Info(ctx, "Order cancelled", map[string]interface{}{"orderID": orderID})
	return nil
}
