package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/tradingbrain/licensing/internal/config"
	"github.com/tradingbrain/licensing/internal/httpclient"
	"github.com/tradingbrain/licensing/internal/logger"
	"github.com/tradingbrain/licensing/internal/security"
	"github.com/tradingbrain/licensing/internal/types"
)

// ipnsign signs a notification body the way the payment processor does and
// optionally delivers it to a running webhook.
//
//	ipnsign -secret s3cret -file ipn.json
//	ipnsign -file ipn.json -url http://localhost:8080/api/webhook
func main() {
	file := flag.String("file", "-", "Notification JSON file, - for stdin")
	secret := flag.String("secret", os.Getenv("NOWPAYMENTS_IPN_SECRET"), "IPN secret used to sign the body")
	url := flag.String("url", "", "Webhook URL to post the signed notification to")
	header := flag.String("header", types.HeaderNowPaymentsSignature, "Signature header name")
	ascii := flag.Bool("ascii", false, "Sign the form with non-ASCII characters escaped")
	flag.Parse()

	body, err := readBody(*file)
	if err != nil {
		log.Fatalf("Failed to read notification: %v", err)
	}

	payload, err := security.DecodePayload(body)
	if err != nil {
		log.Fatalf("Failed to decode notification: %v", err)
	}

	sign := security.Sign
	if *ascii {
		sign = security.SignASCII
	}
	sig, err := sign(payload, *secret)
	if err != nil {
		log.Fatalf("Failed to sign notification: %v", err)
	}

	if *url == "" {
		fmt.Println(sig)
		return
	}

	cfg := config.GetDefaultConfig()
	cfg.HTTPClient.RetryMax = 0
	client := httpclient.NewDefaultClient(cfg, logger.NewNoopLogger())

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	resp, err := client.Send(ctx, &httpclient.Request{
		Method: "POST",
		URL:    *url,
		Headers: map[string]string{
			"Content-Type": "application/json",
			*header:        sig,
		},
		Body: body,
	})
	if httpErr, ok := httpclient.IsHTTPError(err); ok {
		fmt.Printf("%d %s\n", httpErr.StatusCode, string(httpErr.Response))
		os.Exit(1)
	}
	if err != nil {
		log.Fatalf("Failed to deliver notification: %v", err)
	}
	fmt.Printf("%d %s\n", resp.StatusCode, string(resp.Body))
}

func readBody(path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(path)
}
