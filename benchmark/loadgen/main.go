package main

import (
	"flag"
	"fmt"
	"log"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
)

// Dispara colocações de pedido concorrentes contra o serviço e reporta a
// divisão aceito/rejeitado/falha. Com estoque inicial conhecido, o total
// aceito vezes a quantidade nunca pode passar do estoque — é a checagem
// de oversell "no grosso".
func main() {
	var (
		baseURL   = flag.String("url", "http://localhost:8080", "service base URL")
		productID = flag.String("product", "product-1", "product to order")
		workers   = flag.Int("workers", 20, "concurrent placements")
		quantity  = flag.Int("quantity", 1, "quantity per placement")
		timeout   = flag.Duration("timeout", 10*time.Second, "per-request timeout")
	)
	flag.Parse()

	client := resty.New().
		SetBaseURL(*baseURL).
		SetTimeout(*timeout).
		SetHeader("Content-Type", "application/json")

	var accepted, rejected, failed atomic.Int64

	start := time.Now()
	var wg sync.WaitGroup
	for i := 0; i < *workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			body := map[string]any{
				"request_id": uuid.New().String(),
				"delivery_address": map[string]string{
					"street":      "Av. Paulista, 1000",
					"city":        "São Paulo",
					"postal_code": "01310-100",
					"country":     "BR",
				},
				"items": []map[string]any{
					{"product_id": *productID, "quantity": *quantity},
				},
			}

			resp, err := client.R().SetBody(body).Post("/api/orders")
			if err != nil {
				failed.Add(1)
				return
			}

			switch resp.StatusCode() {
			case http.StatusCreated:
				accepted.Add(1)
			case http.StatusConflict:
				rejected.Add(1)
			default:
				log.Printf("unexpected status %d: %s", resp.StatusCode(), resp.String())
				failed.Add(1)
			}
		}()
	}
	wg.Wait()

	elapsed := time.Since(start)
	fmt.Printf("workers=%d quantity=%d elapsed=%s\n", *workers, *quantity, elapsed)
	fmt.Printf("accepted=%d rejected=%d failed=%d\n", accepted.Load(), rejected.Load(), failed.Load())
	fmt.Printf("units reserved=%d\n", accepted.Load()*int64(*quantity))
}
