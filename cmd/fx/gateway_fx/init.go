package gateway_fx

import (
	"log"
	"os"

	"go.uber.org/fx"

	"gatebot/internal/gateway"
)

var Module = fx.Provide(
	provideGateway,
)

func provideGateway() gateway.PixGateway {

	baseURL := os.Getenv("EFI_BASE_URL")
	if baseURL == "" {
		if os.Getenv("EFI_SANDBOX") == "true" {
			baseURL = "https://pix-h.api.efipay.com.br"
		} else {
			baseURL = "https://pix.api.efipay.com.br"
		}
	}

	client, err := gateway.NewEfiClient(gateway.EfiConfig{
		BaseURL:         baseURL,
		ClientID:        os.Getenv("EFI_CLIENT_ID"),
		ClientSecret:    os.Getenv("EFI_CLIENT_SECRET"),
		PixKey:          os.Getenv("EFI_PIX_KEY"),
		CertificatePath: os.Getenv("EFI_CERTIFICATE_PATH"),
	})
	if err != nil {
		// Without the processor the funnel cannot operate at all.
		log.Fatalf("Failed to initialize the Efi client: %v", err)
	}

	return client
}
