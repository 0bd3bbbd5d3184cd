package api

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/wildflourbakery/backend/order-service/internal/models"
)

// getUnorderedCartItems gets a user's live cart lines with product and
// portion details. This is the Cart Aggregator's read: it never mutates.
func (h *Handler) getUnorderedCartItems(ctx context.Context, userID int) ([]models.CartItem, error) {
	query := `
		SELECT
			ci.id, ci.user_id, ci.product_id, ci.portion_id, ci.quantity, ci.price, ci.ordered, ci.order_id,
			p.id, p.name, p.description, p.category, p.image,
			po.id, po.product_id, po.size, po.optimal_stock, po.stock, po.price
		FROM cart_items ci
		JOIN products p ON ci.product_id = p.id
		JOIN portions po ON ci.portion_id = po.id
		WHERE ci.user_id = $1 AND ci.ordered = FALSE
		ORDER BY ci.id
	`

	rows, err := h.db.Pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query cart items: %w", err)
	}
	defer rows.Close()

	var items []models.CartItem
	for rows.Next() {
		var item models.CartItem
		var product models.Product
		var portion models.Portion

		err := rows.Scan(
			&item.ID,
			&item.UserID,
			&item.ProductID,
			&item.PortionID,
			&item.Quantity,
			&item.Price,
			&item.Ordered,
			&item.OrderID,
			&product.ID,
			&product.Name,
			&product.Description,
			&product.Category,
			&product.Image,
			&portion.ID,
			&portion.ProductID,
			&portion.Size,
			&portion.OptimalStock,
			&portion.Stock,
			&portion.Price,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan cart item: %w", err)
		}

		item.Product = &product
		item.Portion = &portion
		items = append(items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating cart items: %w", err)
	}

	return items, nil
}

// getProduct retrieves a catalog product by ID (read-only collaborator data)
func (h *Handler) getProduct(ctx context.Context, productID int) (*models.Product, error) {
	var product models.Product
	query := `
		SELECT id, name, description, category, image
		FROM products
		WHERE id = $1
	`

	err := h.db.Pool.QueryRow(ctx, query, productID).Scan(
		&product.ID,
		&product.Name,
		&product.Description,
		&product.Category,
		&product.Image,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.ErrProductNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get product: %w", err)
	}

	return &product, nil
}

// getPortion retrieves a portion by ID
func (h *Handler) getPortion(ctx context.Context, portionID int) (*models.Portion, error) {
	var portion models.Portion
	query := `
		SELECT id, product_id, size, optimal_stock, stock, price
		FROM portions
		WHERE id = $1
	`

	err := h.db.Pool.QueryRow(ctx, query, portionID).Scan(
		&portion.ID,
		&portion.ProductID,
		&portion.Size,
		&portion.OptimalStock,
		&portion.Stock,
		&portion.Price,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.ErrPortionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get portion: %w", err)
	}

	return &portion, nil
}

// addItemToCart validates the product/portion pairing and inserts a priced
// cart line. The stored price is the quantity-scaled line total.
func (h *Handler) addItemToCart(ctx context.Context, userID, productID, portionID, quantity int) (*models.CartItem, error) {
	if quantity < 1 {
		return nil, models.ErrInvalidQuantity
	}

	product, err := h.getProduct(ctx, productID)
	if err != nil {
		return nil, err
	}

	portion, err := h.getPortion(ctx, portionID)
	if err != nil {
		return nil, err
	}

	if portion.ProductID != productID {
		return nil, models.ErrPortionMismatch
	}
	if portion.SoldOut() {
		return nil, fmt.Errorf("portion %d: %w", portionID, models.ErrInsufficientStock)
	}

	price := models.LineTotal(portion.Price, quantity)

	var item models.CartItem
	query := `
		INSERT INTO cart_items (user_id, product_id, portion_id, quantity, price, ordered, order_id)
		VALUES ($1, $2, $3, $4, $5, FALSE, NULL)
		RETURNING id, user_id, product_id, portion_id, quantity, price, ordered, order_id
	`

	err = h.db.Pool.QueryRow(ctx, query, userID, productID, portionID, quantity, price).Scan(
		&item.ID,
		&item.UserID,
		&item.ProductID,
		&item.PortionID,
		&item.Quantity,
		&item.Price,
		&item.Ordered,
		&item.OrderID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to add item to cart: %w", err)
	}

	item.Product = product
	item.Portion = portion
	return &item, nil
}

// updateCartItemQuantity changes a live cart line's quantity and reprices it
// from the portion's current price.
func (h *Handler) updateCartItemQuantity(ctx context.Context, userID, itemID, quantity int) (*models.CartItem, error) {
	if quantity < 1 {
		return nil, models.ErrInvalidQuantity
	}

	var portionID int
	err := h.db.Pool.QueryRow(ctx, `
		SELECT portion_id FROM cart_items
		WHERE id = $1 AND user_id = $2 AND ordered = FALSE
	`, itemID, userID).Scan(&portionID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.ErrCartItemNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get cart item: %w", err)
	}

	portion, err := h.getPortion(ctx, portionID)
	if err != nil {
		return nil, err
	}

	price := models.LineTotal(portion.Price, quantity)

	var item models.CartItem
	query := `
		UPDATE cart_items
		SET quantity = $1, price = $2
		WHERE id = $3 AND user_id = $4 AND ordered = FALSE
		RETURNING id, user_id, product_id, portion_id, quantity, price, ordered, order_id
	`

	err = h.db.Pool.QueryRow(ctx, query, quantity, price, itemID, userID).Scan(
		&item.ID,
		&item.UserID,
		&item.ProductID,
		&item.PortionID,
		&item.Quantity,
		&item.Price,
		&item.Ordered,
		&item.OrderID,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.ErrCartItemNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update cart item: %w", err)
	}

	item.Portion = portion
	return &item, nil
}

// removeCartItem deletes a live cart line. Ordered lines are immutable.
func (h *Handler) removeCartItem(ctx context.Context, userID, itemID int) error {
	result, err := h.db.Pool.Exec(ctx, `
		DELETE FROM cart_items
		WHERE id = $1 AND user_id = $2 AND ordered = FALSE
	`, itemID, userID)
	if err != nil {
		return fmt.Errorf("failed to remove cart item: %w", err)
	}

	if result.RowsAffected() == 0 {
		return models.ErrCartItemNotFound
	}

	return nil
}

// setPortionStock sets a portion's stock to an exact non-negative value.
// Restock and manual correction both come through here; decrements never do.
func (h *Handler) setPortionStock(ctx context.Context, portionID, stock int) (*models.Portion, error) {
	if stock < 0 {
		return nil, models.ErrInvalidStock
	}

	var portion models.Portion
	query := `
		UPDATE portions
		SET stock = $1
		WHERE id = $2
		RETURNING id, product_id, size, optimal_stock, stock, price
	`

	err := h.db.Pool.QueryRow(ctx, query, stock, portionID).Scan(
		&portion.ID,
		&portion.ProductID,
		&portion.Size,
		&portion.OptimalStock,
		&portion.Stock,
		&portion.Price,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.ErrPortionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to set portion stock: %w", err)
	}

	return &portion, nil
}

// getRecentOrders returns the user's latest n orders with their items
func (h *Handler) getRecentOrders(ctx context.Context, userID, n int) ([]models.Order, error) {
	query := `
		SELECT id, user_id, total_price, date, status, stripe_session_id, stripe_payment_id,
			delivery_method, payment_status, shipping_address_id
		FROM orders
		WHERE user_id = $1
		ORDER BY date DESC
		LIMIT $2
	`

	rows, err := h.db.Pool.Query(ctx, query, userID, n)
	if err != nil {
		return nil, fmt.Errorf("failed to query orders: %w", err)
	}
	defer rows.Close()

	orders, err := scanOrders(rows)
	if err != nil {
		return nil, err
	}

	for i := range orders {
		items, err := h.getOrderItems(ctx, orders[i].ID)
		if err != nil {
			return nil, err
		}
		orders[i].Items = items
	}

	return orders, nil
}

// getUserOrders returns one page of the user's order history
func (h *Handler) getUserOrders(ctx context.Context, userID, page, limit int) (*models.OrderListResponse, error) {
	var total int
	if err := h.db.Pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM orders WHERE user_id = $1
	`, userID).Scan(&total); err != nil {
		return nil, fmt.Errorf("failed to count orders: %w", err)
	}

	query := `
		SELECT id, user_id, total_price, date, status, stripe_session_id, stripe_payment_id,
			delivery_method, payment_status, shipping_address_id
		FROM orders
		WHERE user_id = $1
		ORDER BY date DESC
		LIMIT $2 OFFSET $3
	`

	rows, err := h.db.Pool.Query(ctx, query, userID, limit, (page-1)*limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query orders: %w", err)
	}
	defer rows.Close()

	orders, err := scanOrders(rows)
	if err != nil {
		return nil, err
	}

	for i := range orders {
		items, err := h.getOrderItems(ctx, orders[i].ID)
		if err != nil {
			return nil, err
		}
		orders[i].Items = items
	}

	return &models.OrderListResponse{
		Orders:     orders,
		Total:      total,
		Page:       page,
		TotalPages: (total + limit - 1) / limit,
	}, nil
}

// getOrderByID retrieves one order with items and task. A non-nil userID
// scopes the lookup to that owner.
func (h *Handler) getOrderByID(ctx context.Context, orderID int, userID *int) (*models.Order, error) {
	query := `
		SELECT id, user_id, total_price, date, status, stripe_session_id, stripe_payment_id,
			delivery_method, payment_status, shipping_address_id
		FROM orders
		WHERE id = $1 AND ($2::int IS NULL OR user_id = $2)
	`

	var order models.Order
	err := h.db.Pool.QueryRow(ctx, query, orderID, userID).Scan(
		&order.ID,
		&order.UserID,
		&order.TotalPrice,
		&order.Date,
		&order.Status,
		&order.StripeSessionID,
		&order.StripePaymentID,
		&order.DeliveryMethod,
		&order.PaymentStatus,
		&order.ShippingAddressID,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get order: %w", err)
	}

	items, err := h.getOrderItems(ctx, order.ID)
	if err != nil {
		return nil, err
	}
	order.Items = items

	task, err := h.getOrderTask(ctx, order.ID)
	if err != nil {
		return nil, err
	}
	order.Task = task

	return &order, nil
}

// getOrderItems retrieves the cart lines attached to an order
func (h *Handler) getOrderItems(ctx context.Context, orderID int) ([]models.CartItem, error) {
	query := `
		SELECT
			ci.id, ci.user_id, ci.product_id, ci.portion_id, ci.quantity, ci.price, ci.ordered, ci.order_id,
			p.id, p.name, p.description, p.category, p.image,
			po.id, po.product_id, po.size, po.optimal_stock, po.stock, po.price
		FROM cart_items ci
		JOIN products p ON ci.product_id = p.id
		JOIN portions po ON ci.portion_id = po.id
		WHERE ci.order_id = $1
		ORDER BY ci.id
	`

	rows, err := h.db.Pool.Query(ctx, query, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to query order items: %w", err)
	}
	defer rows.Close()

	var items []models.CartItem
	for rows.Next() {
		var item models.CartItem
		var product models.Product
		var portion models.Portion

		err := rows.Scan(
			&item.ID,
			&item.UserID,
			&item.ProductID,
			&item.PortionID,
			&item.Quantity,
			&item.Price,
			&item.Ordered,
			&item.OrderID,
			&product.ID,
			&product.Name,
			&product.Description,
			&product.Category,
			&product.Image,
			&portion.ID,
			&portion.ProductID,
			&portion.Size,
			&portion.OptimalStock,
			&portion.Stock,
			&portion.Price,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan order item: %w", err)
		}

		item.Product = &product
		item.Portion = &portion
		items = append(items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating order items: %w", err)
	}

	return items, nil
}

// getOrderTask retrieves the fulfillment task paired with an order
func (h *Handler) getOrderTask(ctx context.Context, orderID int) (*models.Task, error) {
	var task models.Task
	query := `
		SELECT id, admin_id, order_id, assigned_at, completed_at
		FROM tasks
		WHERE order_id = $1
	`

	err := h.db.Pool.QueryRow(ctx, query, orderID).Scan(
		&task.ID,
		&task.AdminID,
		&task.OrderID,
		&task.AssignedAt,
		&task.CompletedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		// Orders created before the task workflow may not have one
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get order task: %w", err)
	}

	return &task, nil
}

// scanOrders collects order rows into models. The empty result is a non-nil
// slice so order listings serialize as [] rather than null.
func scanOrders(rows pgx.Rows) ([]models.Order, error) {
	orders := []models.Order{}
	for rows.Next() {
		var order models.Order
		err := rows.Scan(
			&order.ID,
			&order.UserID,
			&order.TotalPrice,
			&order.Date,
			&order.Status,
			&order.StripeSessionID,
			&order.StripePaymentID,
			&order.DeliveryMethod,
			&order.PaymentStatus,
			&order.ShippingAddressID,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		orders = append(orders, order)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating orders: %w", err)
	}

	return orders, nil
}
