package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"time"

	"hookah_delivery/internal/capacity"
	"hookah_delivery/internal/gateway"
	"hookah_delivery/internal/sessiontimer"
	"hookah_delivery/internal/storefront"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// 命令行走一遍下单流程：看目录 -> 加购 -> 促销码 -> 下单 -> 查看订单 -> 倒计时。
func main() {
	var (
		baseURL  = flag.String("base", "http://localhost:8080", "server base url")
		identity = flag.String("identity", "", "client identity (random if empty)")
		lang     = flag.String("lang", "ru", "display language")
		units    = flag.Int("units", 1, "units to add to cart")
		mixID    = flag.String("mix", "", "mix id (featured mix if empty)")
		drinks   = flag.String("drinks", "", "comma separated drink ids")
		promo    = flag.String("promo", "", "promo code")
		phone    = flag.String("phone", "+995555000000", "contact phone")
		address  = flag.String("address", "Rustaveli Ave 1", "delivery address")
		deposit  = flag.String("deposit", "cash", "deposit type: cash|passport|none")
		cancelIt = flag.Bool("cancel", false, "cancel the order right after placing it")
		rebowl   = flag.String("rebowl", "", "request a new bowl with this mix id (\"same\" keeps the ordered mix)")
		watch    = flag.Duration("watch", 0, "watch the session timer of the active order for this long")
		timeout  = flag.Duration("timeout", 10*time.Second, "per request timeout")
	)
	flag.Parse()

	logger, _ := zap.NewDevelopment()
	defer logger.Sync()

	if *identity == "" {
		*identity = "cli-" + uuid.NewString()[:8]
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	client := gateway.New(*baseURL, gateway.WithLogger(logger.Named("gateway")))
	sess := storefront.NewSession(*identity, *lang, client, logger.Named("storefront"))

	step := func(name string, fn func(context.Context) error) {
		c, cancel := context.WithTimeout(ctx, *timeout)
		defer cancel()
		if err := fn(c); err != nil {
			fmt.Printf("%s failed: %v\n", name, err)
			os.Exit(1)
		}
	}

	// 1. 目录与可用设备
	step("load catalog", sess.LoadCatalog)
	view := sess.CatalogView()
	printJSON("catalog", view)
	if view.SoldOut {
		fmt.Println("sold out, nothing to order")
		return
	}

	// 2. 加购：按 cap 逐台添加，被拒绝即停止
	target := *mixID
	if target == "" {
		if view.Featured == nil {
			fmt.Println("no featured mix, pass -mix")
			os.Exit(1)
		}
		target = view.Featured.ID
	}
	for i := 0; i < *units; i++ {
		d, err := sess.Cart().AddUnit(target)
		if err != nil {
			fmt.Printf("add unit: %v\n", err)
			os.Exit(1)
		}
		if d != capacity.Allow {
			fmt.Printf("unit %d rejected: %s\n", i+1, d)
			break
		}
	}
	for _, id := range splitCSV(*drinks) {
		if ok, err := sess.Cart().AddAddOn(id); err != nil || !ok {
			fmt.Printf("drink %s not added (err=%v)\n", id, err)
		}
	}

	if *promo != "" {
		step("apply promo", func(c context.Context) error {
			p, err := sess.ApplyPromo(c, *promo, *phone)
			if errors.Is(err, gateway.ErrPromoInvalid) {
				fmt.Printf("promo rejected: %v\n", err)
				return nil
			}
			if err == nil {
				fmt.Printf("promo accepted: -%d%%\n", p)
			}
			return err
		})
	}
	printJSON("totals", sess.Totals())

	// 3. 下单
	var result gateway.CreateOrderResult
	step("submit", func(c context.Context) error {
		var err error
		result, err = sess.Submit(c, storefront.CheckoutForm{
			Phone:         *phone,
			Address:       *address,
			DepositType:   *deposit,
			RulesAccepted: true,
		})
		return err
	})
	printJSON("order", result)

	// 4. 订单列表
	var orders gateway.Orders
	step("orders", func(c context.Context) error {
		var err error
		orders, err = sess.Orders(c)
		return err
	})
	if orders.Active == nil {
		fmt.Println("no active order")
		return
	}
	printJSON("active", sess.RenderOrder(*orders.Active))

	if *cancelIt {
		step("cancel", func(c context.Context) error {
			o, err := sess.Cancel(c, *orders.Active)
			if err != nil {
				return err
			}
			printJSON("canceled", sess.RenderOrder(o))
			return nil
		})
		return
	}

	if *rebowl != "" {
		mix := *rebowl
		if mix == "same" {
			mix = ""
		}
		step("rebowl", func(c context.Context) error {
			r, err := sess.RequestRebowl(c, *orders.Active, mix)
			if errors.Is(err, storefront.ErrActionNotAllowed) {
				fmt.Printf("rebowl not available: %v\n", err)
				return nil
			}
			if err == nil {
				printJSON("rebowl", r)
			}
			return err
		})
	}

	// 5. 会话倒计时（仅 SESSION_ACTIVE / SESSION_ENDING）
	if *watch > 0 {
		wctx, cancel := context.WithTimeout(ctx, *watch)
		defer cancel()
		err := sess.WatchSession(wctx, *orders.Active, func(t sessiontimer.Tick) {
			fmt.Printf("\rremaining %s", t.Display)
		})
		fmt.Println()
		if errors.Is(err, storefront.ErrNotTimed) {
			fmt.Printf("order is %s, no session timer yet\n", orders.Active.Status)
		}
	}
}

func printJSON(title string, v any) {
	b, _ := json.MarshalIndent(v, "", "  ")
	fmt.Printf("== %s ==\n%s\n", title, b)
}

func splitCSV(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
