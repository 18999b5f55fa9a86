package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync"
	"time"
)

// Result 记录单次请求的 HTTP 结果，便于聚合统计。
type Result struct {
	Status int
	Body   string
	Err    error
}

// 配合 server -seed 使用：种子门店在 (10.97, -74.81)，这里的用户都在 2km 内。
const (
	userLat = 10.9685
	userLon = -74.8069
)

func main() {
	baseURL := flag.String("base", "http://localhost:8080", "server base url")
	promoID := flag.Int("promo", 1, "promo id")
	adminToken := flag.String("admin-token", "dev-admin-token", "admin token for profile setup")
	setup := flag.Bool("setup", true, "create eligible profiles for all test users first")
	stockCheck := flag.Bool("stock", true, "check stock after test")

	// 超卖测试参数：200 个用户并发抢
	nUsers := flag.Int("users", 200, "distinct users")
	concurrency := flag.Int("c", 50, "max concurrency")
	firstUser := flag.Int64("first-user", 10000, "first user id")
	flag.Parse()

	client := &http.Client{Timeout: 5 * time.Second}

	if *setup {
		for i := 0; i < *nUsers; i++ {
			uid := *firstUser + int64(i)
			err := doJSON(client, http.MethodPut, fmt.Sprintf("%s/profiles/%d", *baseURL, uid), map[string]any{
				"lat": userLat, "lon": userLon, "is_new_user": true,
			}, map[string]string{"X-Admin-Token": *adminToken})
			if err != nil {
				panic(fmt.Sprintf("setup profile %d failed: %v", uid, err))
			}
		}
		fmt.Printf("setup ok: %d profiles\n", *nUsers)
	}

	before, err := getStock(client, *baseURL, *promoID, *firstUser)
	if err != nil {
		fmt.Println("stock check err:", err)
	}

	// 1) 不超卖测试：不同 user 并发
	fmt.Printf("start oversell test: promo=%d users=%d concurrency=%d stock=%d\n", *promoID, *nUsers, *concurrency, before)
	results := runReserve(client, *baseURL, *promoID, *nUsers, *concurrency, func(idx int) int64 {
		return *firstUser + int64(idx)
	})
	printSummary("oversell", results)

	if *stockCheck {
		stock, err := getStock(client, *baseURL, *promoID, *firstUser)
		if err != nil {
			fmt.Println("stock check err:", err)
		} else {
			fmt.Println("final stock:", stock)
			if stock < 0 {
				fmt.Println("OVERSOLD!")
			}
		}
	}

	// 2) 限流测试：同一个 user 重复抢（RESERVE_RATE_LIMIT 调小更容易触发 429）
	fmt.Println("\nstart rate limit test: same user, 50 requests, concurrency 50")
	results2 := runReserve(client, *baseURL, *promoID, 50, 50, func(int) int64 { return *firstUser })
	printSummary("rate_limit", results2)
}

func runReserve(client *http.Client, baseURL string, promoID, total, concurrency int, userOf func(idx int) int64) []Result {
	sem := make(chan struct{}, concurrency)
	var wg sync.WaitGroup
	results := make([]Result, total)

	for i := 0; i < total; i++ {
		wg.Add(1)
		sem <- struct{}{}
		go func(idx int) {
			defer wg.Done()
			defer func() { <-sem }()
			results[idx] = reserveOnce(client, baseURL, promoID, userOf(idx))
		}(i)
	}

	wg.Wait()
	return results
}

func reserveOnce(client *http.Client, baseURL string, promoID int, userID int64) Result {
	b, _ := json.Marshal(map[string]int{"promo_id": promoID})
	httpReq, _ := http.NewRequest(http.MethodPost, baseURL+"/cart/reserve", bytes.NewReader(b))
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-User-ID", strconv.FormatInt(userID, 10))

	resp, err := client.Do(httpReq)
	if err != nil {
		return Result{Err: err}
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	return Result{Status: resp.StatusCode, Body: string(body)}
}

// printSummary 聚合输出不同状态码分布。
func printSummary(name string, results []Result) {
	count := map[int]int{}
	errCount := 0
	for _, r := range results {
		if r.Err != nil {
			errCount++
			continue
		}
		count[r.Status]++
	}
	fmt.Printf("[%s] http status summary:\n", name)
	for _, code := range []int{201, 400, 403, 404, 429, 500} {
		if count[code] > 0 {
			fmt.Printf("  %d -> %d\n", code, count[code])
		}
	}
	if errCount > 0 {
		fmt.Printf("  errors -> %d\n", errCount)
	}
}

func doJSON(client *http.Client, method, url string, body any, headers map[string]string) error {
	var r io.Reader
	if body != nil {
		b, _ := json.Marshal(body)
		r = bytes.NewReader(b)
	}
	req, _ := http.NewRequest(method, url, r)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
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

// getStock 查询活动商品当前库存，用于压测后校验是否出现超卖。
func getStock(client *http.Client, baseURL string, promoID int, asUser int64) (int64, error) {
	req, _ := http.NewRequest(http.MethodGet, fmt.Sprintf("%s/promos/%d/stock", baseURL, promoID), nil)
	req.Header.Set("X-User-ID", strconv.FormatInt(asUser, 10))
	resp, err := client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 300 {
		return 0, fmt.Errorf("status=%d body=%s", resp.StatusCode, string(b))
	}

	var out struct {
		Code int `json:"code"`
		Data struct {
			Stock int64 `json:"stock"`
		} `json:"data"`
	}
	if err := json.Unmarshal(b, &out); err != nil {
		return 0, err
	}
	return out.Data.Stock, nil
}
