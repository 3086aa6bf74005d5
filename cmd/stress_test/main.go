package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/http/cookiejar"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/rl1809/storefront/internal/adapter/handler"
)

const (
	httpAddr      = "http://localhost:8080"
	grpcAddr      = "localhost:50051"
	totalRequests = 50
)

// Places one order through the HTTP API, then races totalRequests admin
// Placed -> Processing transitions on it over gRPC. Exactly one may win.
func main() {
	ctx := context.Background()

	jar, _ := cookiejar.New(nil)
	client := &http.Client{Jar: jar, Timeout: 10 * time.Second}

	token := login(client)
	orderID := placeOrder(client)
	log.Printf("placed order %s", orderID)

	conn, err := grpc.NewClient(grpcAddr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		log.Fatalf("failed to connect grpc: %v", err)
	}
	defer conn.Close()

	admin := handler.NewOrderAdminClient(conn)
	authCtx := metadata.AppendToOutgoingContext(ctx, "authorization", "Bearer "+token)

	req, err := structpb.NewStruct(map[string]any{"id": orderID, "newStatus": "Processing"})
	if err != nil {
		log.Fatalf("failed to build request: %v", err)
	}

	// Counters
	var successCount, conflictCount, rejectedCount, otherCount atomic.Int32

	var wg sync.WaitGroup
	start := time.Now()

	for i := 0; i < totalRequests; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			_, err := admin.TransitionStatus(authCtx, req)
			switch status.Code(err) {
			case codes.OK:
				successCount.Add(1)
			case codes.Aborted:
				conflictCount.Add(1)
			case codes.FailedPrecondition:
				rejectedCount.Add(1)
			default:
				otherCount.Add(1)
				log.Printf("unexpected error: %v", err)
			}
		}()
	}

	wg.Wait()
	elapsed := time.Since(start)

	success := successCount.Load()

	fmt.Println("========== STRESS TEST RESULTS ==========")
	fmt.Printf("Order:            %s\n", orderID)
	fmt.Printf("Total Requests:   %d\n", totalRequests)
	fmt.Printf("Successful:       %d\n", success)
	fmt.Printf("Lost race:        %d\n", conflictCount.Load())
	fmt.Printf("Already moved:    %d\n", rejectedCount.Load())
	fmt.Printf("Other errors:     %d\n", otherCount.Load())
	fmt.Printf("Duration:         %v\n", elapsed)
	fmt.Println("==========================================")

	if success == 1 && otherCount.Load() == 0 {
		fmt.Println("PASS: Exactly 1 transition succeeded")
	} else {
		fmt.Printf("FAIL: Expected 1 success and no other errors, got %d/%d\n", success, otherCount.Load())
	}

	// Verify final status
	out, err := admin.GetOrder(authCtx, &structpb.Struct{Fields: map[string]*structpb.Value{"id": structpb.NewStringValue(orderID)}})
	if err != nil {
		log.Fatalf("failed to read order: %v", err)
	}
	final := out.GetFields()["order"].GetStructValue().GetFields()["status"].GetStringValue()
	fmt.Printf("Final Status: %s\n", final)

	if final == "Processing" {
		fmt.Println("PASS: Order is Processing")
	} else {
		fmt.Printf("FAIL: Expected Processing, got %s\n", final)
	}
}

func login(client *http.Client) string {
	var resp handler.LoginResponse
	post(client, "/api/admin/login", handler.LoginRequest{
		Username: getEnv("ADMIN_USERNAME", "admin"),
		Password: getEnv("ADMIN_PASSWORD", "admin"),
	}, http.StatusOK, &resp)
	return resp.Token
}

func placeOrder(client *http.Client) string {
	httpResp, err := client.Get(httpAddr + "/api/products?limit=1")
	if err != nil {
		log.Fatalf("failed to list products: %v", err)
	}
	defer httpResp.Body.Close()

	var page struct {
		Products []struct {
			ID string `json:"id"`
		} `json:"products"`
	}
	if err := json.NewDecoder(httpResp.Body).Decode(&page); err != nil || len(page.Products) == 0 {
		log.Fatalf("no products to order; start the server with DB_SEED=true")
	}

	post(client, "/api/cart/items", handler.AddItemRequest{ProductID: page.Products[0].ID}, http.StatusOK, nil)

	var placed struct {
		Order struct {
			ID string `json:"id"`
		} `json:"order"`
	}
	post(client, "/api/order/confirm", handler.ConfirmOrderRequest{Email: "stress@example.com"}, http.StatusCreated, &placed)
	return placed.Order.ID
}

func post(client *http.Client, path string, body any, want int, out any) {
	raw, err := json.Marshal(body)
	if err != nil {
		log.Fatalf("encode %s: %v", path, err)
	}

	resp, err := client.Post(httpAddr+path, "application/json", bytes.NewReader(raw))
	if err != nil {
		log.Fatalf("POST %s: %v", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != want {
		log.Fatalf("POST %s: status %d", path, resp.StatusCode)
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			log.Fatalf("decode %s: %v", path, err)
		}
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
