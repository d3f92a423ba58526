package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"time"

	"hookah_delivery/internal/gateway"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// Result 记录单次下单的结果，便于聚合统计。
type Result struct {
	Units int
	Err   error
}

func main() {
	baseURL := flag.String("base", "http://localhost:8080", "server base url")
	mixID := flag.String("mix", "", "mix id (featured mix if empty)")
	units := flag.Int("units", 1, "units per order")
	resync := flag.Bool("resync", true, "call pool resync before test")
	adminToken := flag.String("admin-token", "dev-admin-token", "admin token for resync endpoint")
	poolCheck := flag.Bool("pool", true, "check availability after test")

	// 超订测试参数：200 个身份并发抢有限的设备池
	nUsers := flag.Int("users", 200, "distinct identities")
	concurrency := flag.Int("c", 50, "max concurrency")
	flag.Parse()

	httpClient := &http.Client{Timeout: 5 * time.Second}
	client := gateway.New(*baseURL, gateway.WithHTTPClient(httpClient))
	ctx := context.Background()

	if *resync {
		// 先按数据库重算设备占用，避免上一轮残留导致测试偏差。
		if err := doPOST(httpClient, *baseURL+"/api/admin/pool/resync", *adminToken); err != nil {
			panic(fmt.Sprintf("resync failed: %v", err))
		}
		fmt.Println("resync ok")
	}

	if *mixID == "" {
		m, err := client.Featured(ctx)
		if err != nil || m == nil {
			panic(fmt.Sprintf("no featured mix (err=%v), pass -mix", err))
		}
		*mixID = m.ID
	}

	before, err := client.Availability(ctx)
	if err != nil {
		panic(fmt.Sprintf("availability: %v", err))
	}

	// 1) 不超订测试：不同身份并发
	fmt.Printf("start overbook test: mix=%s units=%d identities=%d concurrency=%d available=%d\n",
		*mixID, *units, *nUsers, *concurrency, before.Available)
	results := runOrders(client, *mixID, *units, identities(*nUsers), *concurrency)
	accepted := printSummary("overbook", results)

	if *poolCheck {
		after, err := client.Availability(ctx)
		if err != nil {
			fmt.Println("pool check err:", err)
		} else {
			fmt.Printf("final availability: %d (before %d, booked %d)\n", after.Available, before.Available, accepted)
			if accepted > int(before.Available) {
				fmt.Println("OVERBOOKED")
			}
		}
	}

	// 2) 限流测试：同一个身份重复下单（更容易触发 429）
	fmt.Println("\nstart rate limit test: same identity, 50 requests, concurrency 50")
	same := make([]string, 50)
	id := "loadtest-" + uuid.NewString()[:8]
	for i := range same {
		same[i] = id
	}
	printSummary("rate_limit", runOrders(client, *mixID, 1, same, 50))
}

func identities(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("loadtest-%d-%s", i+1, uuid.NewString()[:8])
	}
	return out
}

func runOrders(client *gateway.Client, mixID string, units int, ids []string, concurrency int) []Result {
	results := make([]Result, len(ids))
	var g errgroup.Group
	g.SetLimit(concurrency)
	for i, id := range ids {
		i, id := i, id
		g.Go(func() error {
			results[i] = orderOnce(client, mixID, units, id)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func orderOnce(client *gateway.Client, mixID string, units int, identity string) Result {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err := client.CreateOrder(ctx, gateway.CreateOrderRequest{
		Identity:       identity,
		BaseSelections: []gateway.Selection{{ID: mixID, Qty: uint(units)}},
		Phone:          "+995555" + identity[len(identity)-6:],
		Address:        "loadtest",
		DepositType:    "none",
		RulesAccepted:  true,
	})
	return Result{Units: units, Err: err}
}

var outcomes = []struct {
	name string
	err  error
}{
	{"capacity_exceeded", gateway.ErrCapacityExceeded},
	{"active_order_exists", gateway.ErrActiveOrderExists},
	{"rate_limited", gateway.ErrRateLimited},
	{"orders_paused", gateway.ErrOrdersPaused},
	{"validation_failed", gateway.ErrValidation},
}

// printSummary 聚合输出不同结果分布，返回被接受的设备数。
func printSummary(name string, results []Result) int {
	ok, transport, other := 0, 0, 0
	count := make([]int, len(outcomes))
	units := 0
	for _, r := range results {
		if r.Err == nil {
			ok++
			units += r.Units
			continue
		}
		if gateway.IsTransport(r.Err) {
			transport++
			continue
		}
		matched := false
		for i, o := range outcomes {
			if errors.Is(r.Err, o.err) {
				count[i]++
				matched = true
				break
			}
		}
		if !matched {
			other++
		}
	}
	fmt.Printf("[%s] outcome summary:\n", name)
	fmt.Printf("  accepted -> %d (units %d)\n", ok, units)
	for i, o := range outcomes {
		if count[i] > 0 {
			fmt.Printf("  %s -> %d\n", o.name, count[i])
		}
	}
	if transport > 0 {
		fmt.Printf("  transport errors -> %d\n", transport)
	}
	if other > 0 {
		fmt.Printf("  other -> %d\n", other)
	}
	return units
}

// doPOST 调用管理接口。
func doPOST(client *http.Client, url, adminToken string) error {
	req, _ := http.NewRequest(http.MethodPost, url, nil)
	req.Header.Set("X-Admin-Token", adminToken)
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("status=%d body=%s", resp.StatusCode, string(b))
	}
	return nil
}
