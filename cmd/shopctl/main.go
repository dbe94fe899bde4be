// shopctl is a CLI tool for exercising the storefront proxy.
// Each command performs a single operation, making it composable for scripts.
//
// Commands:
//
//	shopctl products [-category ID] [-brand ID]
//	shopctl product -id ID
//	shopctl signin -email EMAIL -password PASSWORD
//	shopctl cart | add -product ID | qty -product ID -count N | remove -product ID
//	shopctl wishlist | toggle -product ID
//	shopctl orders
//
// Examples:
//
//	export SHOPCTL_TOKEN=$(shopctl signin -email me@example.com -password secret -q)
//	shopctl add -product 6428ebc6dc1175abc65ca0b9
//	shopctl qty -product 6428ebc6dc1175abc65ca0b9 -count 3
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"
)

var client = &http.Client{Timeout: 30 * time.Second}

// Global flags (apply to all commands)
var (
	proxyURL string
	token    string
	quiet    bool
	noColor  bool
	verbose  bool
)

// ANSI color codes
var (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
	colorGray   = "\033[90m"
	colorBold   = "\033[1m"
)

func init() {
	if os.Getenv("NO_COLOR") != "" {
		disableColors()
	}
}

func disableColors() {
	colorReset, colorRed, colorGreen, colorYellow = "", "", "", ""
	colorCyan, colorGray, colorBold = "", "", ""
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	switch cmd {
	case "products":
		runProducts(args)
	case "product":
		runProduct(args)
	case "signin":
		runSignin(args)
	case "cart":
		runCart(args)
	case "add":
		runAdd(args)
	case "qty":
		runQty(args)
	case "remove":
		runRemove(args)
	case "wishlist":
		runWishlist(args)
	case "toggle":
		runToggle(args)
	case "orders":
		runOrders(args)
	case "-h", "-help", "--help", "help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", cmd)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `shopctl - storefront proxy test tool

Usage:
  shopctl <command> [options]

Commands:
  products  List products, optionally by category or brand
  product   Show one product
  signin    Sign in and print the token
  cart      Show the cart
  add       Add one unit of a product to the cart
  qty       Set a cart line's quantity
  remove    Remove a product from the cart
  wishlist  Show the wishlist
  toggle    Add or remove a product from the wishlist
  orders    List past orders

Commands that need a session read the token from -token or SHOPCTL_TOKEN.

Run 'shopctl <command> -h' for command-specific options.
`)
}

// newFlagSet registers the flags every command shares.
func newFlagSet(name, usage string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	fs.StringVar(&proxyURL, "proxy", envOr("SHOPCTL_PROXY", "http://localhost:8080"), "Storefront proxy base URL")
	fs.StringVar(&token, "token", os.Getenv("SHOPCTL_TOKEN"), "User token")
	fs.BoolVar(&quiet, "q", false, "Quiet mode - minimal output for scripts")
	fs.BoolVar(&noColor, "no-color", false, "Disable colored output")
	fs.BoolVar(&verbose, "v", false, "Verbose - show full request/response")
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: shopctl %s\n\nOptions:\n", usage)
		fs.PrintDefaults()
	}
	return fs
}

func parse(fs *flag.FlagSet, args []string) {
	fs.Parse(args)
	if noColor {
		disableColors()
	}
}

func requireToken() {
	if token == "" {
		fatal("No token: pass -token or set SHOPCTL_TOKEN (see 'shopctl signin')")
	}
}

// =============================================================================
// CATALOG COMMANDS
// =============================================================================

func runProducts(args []string) {
	fs := newFlagSet("products", "products [-category ID] [-brand ID] [options]")
	var category, brand string
	fs.StringVar(&category, "category", "", "Category ID")
	fs.StringVar(&brand, "brand", "", "Brand ID")
	parse(fs, args)

	q := url.Values{}
	if category != "" {
		q.Set("category", category)
	}
	if brand != "" {
		q.Set("brand", brand)
	}
	path := "/products"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	resp, err := doRequest("GET", path, nil)
	if err != nil {
		fatal("Failed to list products: %v", err)
	}

	products, _ := resp["data"].([]any)
	for _, p := range products {
		pm, ok := p.(map[string]any)
		if !ok {
			continue
		}
		if quiet {
			fmt.Println(pm["_id"])
			continue
		}
		fmt.Printf("  %s%s%s  %s  %s\n", colorCyan, pm["_id"], colorReset, pm["title"], formatPrice(pm["price"]))
	}
	printSuccess("%d products", len(products))
}

func runProduct(args []string) {
	fs := newFlagSet("product", "product -id ID [options]")
	var id string
	fs.StringVar(&id, "id", "", "Product ID (required)")
	parse(fs, args)

	if id == "" {
		fs.Usage()
		os.Exit(1)
	}

	resp, err := doRequest("GET", "/products/"+url.PathEscape(id), nil)
	if err != nil {
		fatal("Failed to get product: %v", err)
	}
	p, _ := resp["data"].(map[string]any)
	if quiet {
		fmt.Println(p["title"])
		return
	}
	printSuccess("Product retrieved")
	fmt.Printf("  Title: %s%s%s\n", colorBold, p["title"], colorReset)
	fmt.Printf("  Price: %s%s%s\n", colorGreen, formatPrice(p["price"]), colorReset)
	if discounted, ok := p["priceAfterDiscount"]; ok {
		fmt.Printf("  After discount: %s%s%s\n", colorGreen, formatPrice(discounted), colorReset)
	}
}

// =============================================================================
// ACCOUNT COMMANDS
// =============================================================================

func runSignin(args []string) {
	fs := newFlagSet("signin", "signin -email EMAIL -password PASSWORD [options]")
	var email, password string
	fs.StringVar(&email, "email", "", "Account email (required)")
	fs.StringVar(&password, "password", "", "Account password (required)")
	parse(fs, args)

	if email == "" || password == "" {
		fs.Usage()
		os.Exit(1)
	}

	resp, err := doRequest("POST", "/auth/signin", map[string]string{"email": email, "password": password})
	if err != nil {
		fatal("Sign in failed: %v", err)
	}

	tok, _ := resp["token"].(string)
	if quiet {
		fmt.Println(tok)
		return
	}
	printSuccess("Signed in")
	if user, ok := resp["user"].(map[string]any); ok {
		fmt.Printf("  User: %s\n", user["name"])
	}
	fmt.Printf("  Token: %s%s%s\n", colorCyan, tok, colorReset)
}

// =============================================================================
// CART COMMANDS
// =============================================================================

func runCart(args []string) {
	fs := newFlagSet("cart", "cart [options]")
	parse(fs, args)
	requireToken()

	resp, err := doRequest("GET", "/cart", nil)
	if err != nil {
		fatal("Failed to get cart: %v", err)
	}
	printCart(resp)
}

func runAdd(args []string) {
	fs := newFlagSet("add", "add -product ID [options]")
	var productID string
	fs.StringVar(&productID, "product", "", "Product ID (required)")
	parse(fs, args)
	requireToken()

	if productID == "" {
		fs.Usage()
		os.Exit(1)
	}

	resp, err := doRequest("POST", "/cart", map[string]string{"productId": productID})
	if err != nil {
		fatal("Failed to add to cart: %v", err)
	}
	printSuccess("Added to cart")
	printCart(resp)
}

func runQty(args []string) {
	fs := newFlagSet("qty", "qty -product ID -count N [options]")
	var productID string
	var count int
	fs.StringVar(&productID, "product", "", "Product ID (required)")
	fs.IntVar(&count, "count", 0, "New quantity, at least 1 (required)")
	parse(fs, args)
	requireToken()

	if productID == "" || count < 1 {
		fs.Usage()
		os.Exit(1)
	}

	resp, err := doRequest("PUT", "/cart/"+url.PathEscape(productID), map[string]int{"count": count})
	if err != nil {
		fatal("Failed to update quantity: %v", err)
	}
	printSuccess("Quantity updated")
	printCart(resp)
}

func runRemove(args []string) {
	fs := newFlagSet("remove", "remove -product ID [options]")
	var productID string
	fs.StringVar(&productID, "product", "", "Product ID (required)")
	parse(fs, args)
	requireToken()

	if productID == "" {
		fs.Usage()
		os.Exit(1)
	}

	resp, err := doRequest("DELETE", "/cart/"+url.PathEscape(productID), nil)
	if err != nil {
		fatal("Failed to remove from cart: %v", err)
	}
	printSuccess("Removed from cart")
	printCart(resp)
}

// =============================================================================
// WISHLIST AND ORDER COMMANDS
// =============================================================================

func runWishlist(args []string) {
	fs := newFlagSet("wishlist", "wishlist [options]")
	parse(fs, args)
	requireToken()

	resp, err := doRequest("GET", "/wishlist", nil)
	if err != nil {
		fatal("Failed to get wishlist: %v", err)
	}
	ids, _ := resp["ids"].([]any)
	for _, id := range ids {
		fmt.Printf("  %s\n", id)
	}
	printSuccess("%d products in wishlist", len(ids))
}

func runToggle(args []string) {
	fs := newFlagSet("toggle", "toggle -product ID [options]")
	var productID string
	fs.StringVar(&productID, "product", "", "Product ID (required)")
	parse(fs, args)
	requireToken()

	if productID == "" {
		fs.Usage()
		os.Exit(1)
	}

	resp, err := doRequest("POST", "/wishlist/"+url.PathEscape(productID)+"/toggle", nil)
	if err != nil {
		fatal("Failed to toggle wishlist: %v", err)
	}
	in, _ := resp["inWishlist"].(bool)
	if quiet {
		fmt.Println(in)
		return
	}
	if in {
		printSuccess("Added to wishlist")
	} else {
		printSuccess("Removed from wishlist")
	}
}

func runOrders(args []string) {
	fs := newFlagSet("orders", "orders [options]")
	parse(fs, args)
	requireToken()

	resp, err := doRequest("GET", "/orders", nil)
	if err != nil {
		fatal("Failed to list orders: %v", err)
	}
	orders, _ := resp["data"].([]any)
	for _, o := range orders {
		om, ok := o.(map[string]any)
		if !ok {
			continue
		}
		fmt.Printf("  %s%s%s  %s  %s\n", colorCyan, om["_id"], colorReset, om["paymentMethodType"], formatPrice(om["totalOrderPrice"]))
	}
	printSuccess("%d orders", len(orders))
}

// =============================================================================
// HTTP HELPERS
// =============================================================================

func doRequest(method, path string, body any) (map[string]any, error) {
	var reqBody io.Reader
	var reqJSON []byte

	if body != nil {
		var err error
		reqJSON, err = json.MarshalIndent(body, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("marshaling request: %w", err)
		}
		reqBody = bytes.NewReader(reqJSON)
	}

	req, err := http.NewRequest(method, strings.TrimSuffix(proxyURL, "/")+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("token", token)
	}

	if verbose {
		printRequest(method, path, reqJSON)
	}

	start := time.Now()
	resp, err := client.Do(req)
	duration := time.Since(start)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	if verbose {
		printResponse(resp.StatusCode, respBody, duration)
	}

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, errorMessage(respBody))
	}

	result := map[string]any{}
	if len(bytes.TrimSpace(respBody)) == 0 {
		return result, nil
	}
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("parsing response: %w", err)
	}
	return result, nil
}

// errorMessage pulls the message out of the proxy's error body.
func errorMessage(body []byte) string {
	var e struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &e); err != nil || e.Error.Message == "" {
		return string(body)
	}
	return e.Error.Code + ": " + e.Error.Message
}

// =============================================================================
// OUTPUT HELPERS
// =============================================================================

func printCart(resp map[string]any) {
	if quiet {
		fmt.Println(resp["itemCount"])
		return
	}
	if id, _ := resp["cartId"].(string); id != "" {
		fmt.Printf("  %sCart %s%s\n", colorGray, id, colorReset)
	}
	items, _ := resp["items"].([]any)
	for _, it := range items {
		im, ok := it.(map[string]any)
		if !ok {
			continue
		}
		title, _ := im["title"].(string)
		if title == "" {
			title, _ = im["productId"].(string)
		}
		fmt.Printf("  %v x %s  %s\n", im["count"], title, formatPrice(im["unitPrice"]))
	}
	fmt.Printf("  %sItems: %v  Total: %s%s\n", colorBold, resp["itemCount"], formatPrice(resp["totalPrice"]), colorReset)
}

func printRequest(method, path string, body []byte) {
	fmt.Printf("\n%s▶ REQUEST%s %s%s %s%s\n", colorYellow, colorReset, colorBold, method, path, colorReset)
	if body != nil {
		printJSON(body, "  ")
	}
}

func printResponse(status int, body []byte, duration time.Duration) {
	statusColor := colorGreen
	if status >= 400 {
		statusColor = colorRed
	}
	fmt.Printf("\n%s◀ RESPONSE%s %s%d%s (%v)\n", colorCyan, colorReset, statusColor, status, colorReset, duration)
	printJSON(body, "  ")
}

func printJSON(data []byte, prefix string) {
	var pretty bytes.Buffer
	if err := json.Indent(&pretty, data, prefix, "  "); err != nil {
		fmt.Printf("%s%s\n", prefix, string(data))
		return
	}
	fmt.Println(pretty.String())
}

func printSuccess(format string, args ...any) {
	if !quiet {
		fmt.Printf("%s✓ %s%s\n", colorGreen, fmt.Sprintf(format, args...), colorReset)
	}
}

// formatPrice renders a major-unit amount as the proxy sends it.
func formatPrice(v any) string {
	switch val := v.(type) {
	case float64:
		return fmt.Sprintf("EGP %.2f", val)
	case nil:
		return "-"
	default:
		return fmt.Sprintf("%v", v)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func fatal(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "%s✗ %s%s\n", colorRed, fmt.Sprintf(format, args...), colorReset)
	os.Exit(1)
}
