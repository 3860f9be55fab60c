package main

import (
	"fmt"
	"log/slog"

	payapp "github.com/dmehra2102/storefront-checkout/internal/payment/application"
	"github.com/dmehra2102/storefront-checkout/internal/payment/infrastructure/sandbox"
	"github.com/dmehra2102/storefront-checkout/internal/payment/infrastructure/wompi"
	"github.com/dmehra2102/storefront-checkout/pkg/config"
)

// newGateway builds the payment gateway named by GATEWAY_MODE.
func newGateway(log *slog.Logger, cfg config.Gateway) (payapp.Gateway, error) {
	switch cfg.Mode {
	case "wompi":
		if cfg.PublicKey == "" || cfg.PrivateKey == "" {
			return nil, fmt.Errorf("gateway mode wompi needs GATEWAY_PUBLIC_KEY and GATEWAY_PRIVATE_KEY")
		}
		return wompi.NewClient(log, cfg.BaseURL, cfg.PublicKey, cfg.PrivateKey), nil
	case "sandbox":
		return sandbox.NewGateway(), nil
	default:
		return nil, fmt.Errorf("unknown gateway mode %q (want wompi or sandbox)", cfg.Mode)
	}
}
