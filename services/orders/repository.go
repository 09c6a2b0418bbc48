package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// InventoryRepository define as operações de banco sobre o inventário.
// O banco é o único ponto de sincronização: toda mutação de estoque passa
// pelo decremento condicional ou pelo incremento de compensação.
type InventoryRepository interface {
	// GetProductInventory busca o inventário de um produto (leitura pura)
	GetProductInventory(ctx context.Context, productID string) (*ProductInventory, error)

	// ReserveStock aplica o decremento condicional atômico: decrementa
	// somente se o estoque atual comporta a quantidade, senão falha com
	// ErrInsufficientStock sem efeito algum. Idempotente por (order, product).
	ReserveStock(ctx context.Context, productID, orderID string, quantity int) error

	// ReleaseStock devolve uma reserva (compensação), idempotente
	ReleaseStock(ctx context.Context, productID, orderID string, quantity int) error

	// RestockProduct repõe estoque com a mesma disciplina condicional
	RestockProduct(ctx context.Context, productID string, quantity int) error
}

// OrderRepository define as operações de banco sobre pedidos
type OrderRepository interface {
	CreateOrder(ctx context.Context, order *Order) error
	OrderExists(ctx context.Context, orderID string) (bool, error)
	GetOrder(ctx context.Context, orderID string) (*Order, error)
	ListOrders(ctx context.Context) ([]*Order, error)
	UpdateOrderStatus(ctx context.Context, orderID string, status string) error
	UpdateDeliveryAddress(ctx context.Context, orderID string, address DeliveryAddress) error
	DeleteOrder(ctx context.Context, orderID string) error
}

// PlacementRepository executa a reserva multi-item e a gravação do pedido
// em uma única transação multi-chave (estratégia transacional)
type PlacementRepository interface {
	// PlaceOrder decrementa todos os itens e grava o pedido na mesma
	// transação. Retorna *ShortageError com todos os itens insuficientes,
	// sem nenhum efeito parcial.
	PlaceOrder(ctx context.Context, order *Order) error
}

// Repository agrega tudo que o serviço consome do Postgres
type Repository interface {
	InventoryRepository
	OrderRepository
	PlacementRepository
}

// PostgresRepository implementa Repository usando PostgreSQL
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository cria uma nova instância de PostgresRepository
func NewPostgresRepository(db *pgxpool.Pool) Repository {
	return &PostgresRepository{db: db}
}

const reserveStockQuery = `
	UPDATE products_inventory
	SET current_stock = current_stock - $2,
	    version = version + 1,
	    updated_at = NOW()
	WHERE id = $1
	  AND current_stock >= $2
`

const releaseStockQuery = `
	UPDATE products_inventory
	SET current_stock = current_stock + $2,
	    version = version + 1,
	    updated_at = NOW()
	WHERE id = $1
`

// GetProductInventory busca o inventário de um produto
func (r *PostgresRepository) GetProductInventory(ctx context.Context, productID string) (*ProductInventory, error) {
	var inventory ProductInventory
	err := r.db.QueryRow(ctx, `
		SELECT id, product_name, current_stock, version, created_at, updated_at
		FROM products_inventory
		WHERE id = $1
	`, productID).Scan(
		&inventory.ID,
		&inventory.ProductName,
		&inventory.CurrentStock,
		&inventory.Version,
		&inventory.CreatedAt,
		&inventory.UpdatedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrProductNotFound, productID)
		}
		return nil, fmt.Errorf("failed to get product inventory: %w", err)
	}
	return &inventory, nil
}

// ReserveStock aplica o decremento condicional e registra o movimento na
// mesma transação
func (r *PostgresRepository) ReserveStock(ctx context.Context, productID, orderID string, quantity int) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	exists, err := movementExists(ctx, tx, orderID, productID, MovementTypeDecreased)
	if err != nil {
		return fmt.Errorf("failed to check idempotency: %w", err)
	}
	if exists {
		return nil
	}

	tag, err := tx.Exec(ctx, reserveStockQuery, productID, quantity)
	if err != nil {
		return fmt.Errorf("failed to decrease stock: %w", err)
	}
	// Linha não afetada: estoque insuficiente ou produto inexistente,
	// ambos "cannot fulfill" para quem chama
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", ErrInsufficientStock, productID)
	}

	if err := insertMovement(ctx, tx, productID, orderID, quantity, MovementTypeDecreased); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit reservation: %w", err)
	}
	return nil
}

// ReleaseStock devolve a quantidade reservada (compensação)
func (r *PostgresRepository) ReleaseStock(ctx context.Context, productID, orderID string, quantity int) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	exists, err := movementExists(ctx, tx, orderID, productID, MovementTypeIncreased)
	if err != nil {
		return fmt.Errorf("failed to check idempotency: %w", err)
	}
	if exists {
		return nil
	}

	if _, err := tx.Exec(ctx, releaseStockQuery, productID, quantity); err != nil {
		return fmt.Errorf("failed to increase stock: %w", err)
	}

	if err := insertMovement(ctx, tx, productID, orderID, quantity, MovementTypeIncreased); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit compensation: %w", err)
	}
	return nil
}

// RestockProduct repõe estoque de um produto
func (r *PostgresRepository) RestockProduct(ctx context.Context, productID string, quantity int) error {
	tag, err := r.db.Exec(ctx, releaseStockQuery, productID, quantity)
	if err != nil {
		return fmt.Errorf("failed to restock product: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", ErrProductNotFound, productID)
	}
	return nil
}

// PlaceOrder executa toda a reserva e a gravação do pedido em uma única
// transação. Os itens são aplicados em ordem crescente de produto para
// evitar deadlock entre pedidos concorrentes que compartilham produtos.
func (r *PostgresRepository) PlaceOrder(ctx context.Context, order *Order) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var shortages []Shortage
	for _, item := range sortedItems(order.Items) {
		tag, err := tx.Exec(ctx, reserveStockQuery, item.ProductID, item.Quantity)
		if err != nil {
			return fmt.Errorf("failed to decrease stock for %s: %w", item.ProductID, err)
		}
		if tag.RowsAffected() == 0 {
			shortages = append(shortages, Shortage{ProductID: item.ProductID, Reason: ShortageReason})
		}
	}
	// Qualquer item insuficiente aborta a transação inteira; os
	// decrementos já aplicados dentro dela são descartados no rollback
	if len(shortages) > 0 {
		return &ShortageError{Shortages: shortages}
	}

	for _, item := range order.Items {
		if err := insertMovement(ctx, tx, item.ProductID, order.ID, item.Quantity, MovementTypeDecreased); err != nil {
			return err
		}
	}

	order.Status = OrderStatusCompleted
	if err := insertOrder(ctx, tx, order); err != nil {
		order.Status = OrderStatusPending
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		order.Status = OrderStatusPending
		return fmt.Errorf("failed to commit placement: %w", err)
	}
	return nil
}

// CreateOrder grava o pedido e seus itens
func (r *PostgresRepository) CreateOrder(ctx context.Context, order *Order) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := insertOrder(ctx, tx, order); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit order: %w", err)
	}
	return nil
}

// OrderExists verifica se um pedido já existe (para idempotência)
func (r *PostgresRepository) OrderExists(ctx context.Context, orderID string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, "SELECT EXISTS(SELECT 1 FROM orders WHERE id = $1)", orderID).Scan(&exists)
	return exists, err
}

// GetOrder busca um pedido pelo ID, com seus itens
func (r *PostgresRepository) GetOrder(ctx context.Context, orderID string) (*Order, error) {
	var order Order
	err := r.db.QueryRow(ctx, `
		SELECT id, status, delivery_street, delivery_city, delivery_postal_code, delivery_country,
		       created_at, updated_at
		FROM orders WHERE id = $1
	`, orderID).Scan(
		&order.ID,
		&order.Status,
		&order.DeliveryAddress.Street,
		&order.DeliveryAddress.City,
		&order.DeliveryAddress.PostalCode,
		&order.DeliveryAddress.Country,
		&order.CreatedAt,
		&order.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrOrderNotFound, orderID)
		}
		return nil, fmt.Errorf("failed to get order: %w", err)
	}

	items, err := r.orderItems(ctx, orderID)
	if err != nil {
		return nil, err
	}
	order.Items = items

	return &order, nil
}

// ListOrders lista todos os pedidos
func (r *PostgresRepository) ListOrders(ctx context.Context) ([]*Order, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, status, delivery_street, delivery_city, delivery_postal_code, delivery_country,
		       created_at, updated_at
		FROM orders ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	defer rows.Close()

	var orders []*Order
	for rows.Next() {
		var order Order
		err := rows.Scan(
			&order.ID,
			&order.Status,
			&order.DeliveryAddress.Street,
			&order.DeliveryAddress.City,
			&order.DeliveryAddress.PostalCode,
			&order.DeliveryAddress.Country,
			&order.CreatedAt,
			&order.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		orders = append(orders, &order)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}

	for _, order := range orders {
		items, err := r.orderItems(ctx, order.ID)
		if err != nil {
			return nil, err
		}
		order.Items = items
	}

	return orders, nil
}

// UpdateOrderStatus atualiza o status de um pedido
func (r *PostgresRepository) UpdateOrderStatus(ctx context.Context, orderID string, status string) error {
	_, err := r.db.Exec(ctx, `
		UPDATE orders
		SET status = $1, updated_at = NOW()
		WHERE id = $2 AND status != $1
	`, status, orderID)
	return err
}

// UpdateDeliveryAddress atualiza somente o endereço de entrega. Itens e
// inventário nunca são tocados por este caminho.
func (r *PostgresRepository) UpdateDeliveryAddress(ctx context.Context, orderID string, address DeliveryAddress) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE orders
		SET delivery_street = $1, delivery_city = $2, delivery_postal_code = $3,
		    delivery_country = $4, updated_at = NOW()
		WHERE id = $5
	`, address.Street, address.City, address.PostalCode, address.Country, orderID)
	if err != nil {
		return fmt.Errorf("failed to update delivery address: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", ErrOrderNotFound, orderID)
	}
	return nil
}

// DeleteOrder remove um pedido e seus itens
func (r *PostgresRepository) DeleteOrder(ctx context.Context, orderID string) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, "DELETE FROM order_items WHERE order_id = $1", orderID); err != nil {
		return fmt.Errorf("failed to delete order items: %w", err)
	}

	tag, err := tx.Exec(ctx, "DELETE FROM orders WHERE id = $1", orderID)
	if err != nil {
		return fmt.Errorf("failed to delete order: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", ErrOrderNotFound, orderID)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit delete: %w", err)
	}
	return nil
}

func (r *PostgresRepository) orderItems(ctx context.Context, orderID string) ([]LineItem, error) {
	rows, err := r.db.Query(ctx, `
		SELECT product_id, quantity
		FROM order_items
		WHERE order_id = $1
		ORDER BY product_id
	`, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to get order items: %w", err)
	}
	defer rows.Close()

	var items []LineItem
	for rows.Next() {
		var item LineItem
		if err := rows.Scan(&item.ProductID, &item.Quantity); err != nil {
			return nil, fmt.Errorf("failed to scan order item: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func insertOrder(ctx context.Context, tx pgx.Tx, order *Order) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO orders (id, status, delivery_street, delivery_city, delivery_postal_code,
		                    delivery_country, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, order.ID, order.Status, order.DeliveryAddress.Street, order.DeliveryAddress.City,
		order.DeliveryAddress.PostalCode, order.DeliveryAddress.Country,
		order.CreatedAt, order.UpdatedAt)
	if err != nil {
		// 23505 na PK de orders: uma requisição concorrente com o mesmo
		// request_id já gravou este pedido
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return fmt.Errorf("%w: %s", ErrOrderAlreadyPlaced, order.ID)
		}
		return fmt.Errorf("failed to insert order: %w", err)
	}

	for _, item := range order.Items {
		_, err := tx.Exec(ctx, `
			INSERT INTO order_items (order_id, product_id, quantity)
			VALUES ($1, $2, $3)
		`, order.ID, item.ProductID, item.Quantity)
		if err != nil {
			return fmt.Errorf("failed to insert order item: %w", err)
		}
	}
	return nil
}

func insertMovement(ctx context.Context, tx pgx.Tx, productID, orderID string, quantity int, movementType string) error {
	movement := NewInventoryMovement(uuid.New().String(), productID, orderID, quantity, movementType)
	_, err := tx.Exec(ctx, `
		INSERT INTO inventory_movements (id, inventory_id, order_id, change_quantity, movement_type, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, movement.ID, movement.InventoryID, movement.OrderID, movement.ChangeQuantity,
		movement.MovementType, movement.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert movement record: %w", err)
	}
	return nil
}

func movementExists(ctx context.Context, tx pgx.Tx, orderID, productID, movementType string) (bool, error) {
	var exists bool
	err := tx.QueryRow(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM inventory_movements
			WHERE order_id = $1 AND inventory_id = $2 AND movement_type = $3
		)
	`, orderID, productID, movementType).Scan(&exists)
	return exists, err
}
