package main

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// StockChecker é a checagem consultiva de disponibilidade. O resultado
// pode ficar obsoleto antes do commit: quem decide é sempre o decremento
// condicional do committer.
type StockChecker interface {
	Check(ctx context.Context, items []LineItem) ([]Shortage, error)
}

// AvailabilityChecker implementa StockChecker lendo o inventário atual,
// um item por goroutine (leituras independentes, sem mutação)
type AvailabilityChecker struct {
	repository InventoryRepository
}

// NewAvailabilityChecker cria uma nova instância de AvailabilityChecker
func NewAvailabilityChecker(repository InventoryRepository) *AvailabilityChecker {
	return &AvailabilityChecker{repository: repository}
}

// Check retorna todos os itens sem estoque suficiente, na ordem da
// requisição. Produto inexistente conta como insuficiente, não como erro.
func (c *AvailabilityChecker) Check(ctx context.Context, items []LineItem) ([]Shortage, error) {
	results := make([]*Shortage, len(items))

	g, gctx := errgroup.WithContext(ctx)
	for i, item := range items {
		g.Go(func() error {
			inventory, err := c.repository.GetProductInventory(gctx, item.ProductID)
			if err != nil {
				if errors.Is(err, ErrProductNotFound) {
					results[i] = &Shortage{ProductID: item.ProductID, Reason: ShortageReason}
					return nil
				}
				return fmt.Errorf("checking availability of %s: %w", item.ProductID, err)
			}
			if inventory.CurrentStock < item.Quantity {
				results[i] = &Shortage{ProductID: item.ProductID, Reason: ShortageReason}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var shortages []Shortage
	for _, s := range results {
		if s != nil {
			shortages = append(shortages, *s)
		}
	}
	return shortages, nil
}
