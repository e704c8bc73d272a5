package gateway

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"gatebot/pkg/utils"
)

// SettlementStatus is the processor's answer to a status poll. Anything
// that is not settled keeps the raw processor status verbatim so the user
// and operators see exactly what the processor reported.
type SettlementStatus struct {
	Settled bool
	Raw     string
}

// ChargeHandle is the result of creating an immediate charge: the
// provider-assigned id plus the copy-paste payment code the user redeems.
type ChargeHandle struct {
	ChargeID    string
	PaymentCode string
	Raw         json.RawMessage
}

type PixGateway interface {
	CreateImmediateCharge(ctx context.Context, amount float64, memo string) (*ChargeHandle, error)
	GetChargeStatus(ctx context.Context, chargeID string) (SettlementStatus, error)
}

type EfiConfig struct {
	BaseURL         string // production or sandbox API host
	ClientID        string
	ClientSecret    string
	PixKey          string // merchant receiving key placed on every charge
	CertificatePath string // combined PEM (certificate + key) for mTLS
	ChargeExpiry    time.Duration
	RequestTimeout  time.Duration
}

// settledStatus is the processor's wire value for a settled charge.
const settledStatus = "CONCLUIDA"

type efiClient struct {
	cfg    EfiConfig
	client *http.Client
}

// NewEfiClient builds the PIX gateway client. The processor requires mTLS
// on every call and OAuth2 client credentials for the bearer token; the
// token source reuses the mTLS transport.
func NewEfiClient(cfg EfiConfig) (PixGateway, error) {
	if cfg.ClientID == "" || cfg.ClientSecret == "" || cfg.PixKey == "" {
		return nil, errors.New("missing Efi credentials")
	}
	if cfg.ChargeExpiry <= 0 {
		cfg.ChargeExpiry = 15 * time.Minute
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 15 * time.Second
	}

	base := &http.Client{Timeout: cfg.RequestTimeout}
	if cfg.CertificatePath != "" {
		cert, err := tls.LoadX509KeyPair(cfg.CertificatePath, cfg.CertificatePath)
		if err != nil {
			return nil, fmt.Errorf("load Efi certificate: %w", err)
		}
		base.Transport = &http.Transport{
			TLSClientConfig: &tls.Config{Certificates: []tls.Certificate{cert}},
		}
	}

	oauthCfg := &clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     cfg.BaseURL + "/oauth/token",
		AuthStyle:    oauth2.AuthStyleInHeader,
	}

	tokenCtx := context.WithValue(context.Background(), oauth2.HTTPClient, base)

	return &efiClient{
		cfg: cfg,
		client: &http.Client{
			Timeout: cfg.RequestTimeout,
			Transport: &oauth2.Transport{
				Source: oauthCfg.TokenSource(tokenCtx),
				Base:   base.Transport,
			},
		},
	}, nil
}

type createChargeRequest struct {
	Calendario struct {
		Expiracao int `json:"expiracao"`
	} `json:"calendario"`
	Valor struct {
		Original string `json:"original"`
	} `json:"valor"`
	Chave              string `json:"chave"`
	SolicitacaoPagador string `json:"solicitacaoPagador"`
}

type createChargeResponse struct {
	Txid string `json:"txid"`
	Loc  struct {
		ID int64 `json:"id"`
	} `json:"loc"`
}

type qrcodeResponse struct {
	PixCopiaECola string `json:"pixCopiaECola"`
	Qrcode        string `json:"qrcode"`
}

type chargeDetailResponse struct {
	Status string `json:"status"`
}

func (e *efiClient) CreateImmediateCharge(ctx context.Context, amount float64, memo string) (*ChargeHandle, error) {

	var req createChargeRequest
	req.Calendario.Expiracao = int(e.cfg.ChargeExpiry.Seconds())
	req.Valor.Original = fmt.Sprintf("%.2f", amount)
	req.Chave = e.cfg.PixKey
	req.SolicitacaoPagador = memo

	body, raw, err := e.do(ctx, http.MethodPost, "/v2/cob", req)
	if err != nil {
		return nil, err
	}

	var charge createChargeResponse
	if err := json.Unmarshal(body, &charge); err != nil {
		return nil, &utils.GatewayError{Op: "create charge", RawBody: string(raw), Err: err}
	}
	if charge.Txid == "" || charge.Loc.ID == 0 {
		return nil, &utils.GatewayError{
			Op:      "create charge",
			RawBody: string(raw),
			Err:     errors.New("response missing txid or loc.id"),
		}
	}

	qrBody, qrRaw, err := e.do(ctx, http.MethodGet, fmt.Sprintf("/v2/loc/%d/qrcode", charge.Loc.ID), nil)
	if err != nil {
		return nil, err
	}

	var qr qrcodeResponse
	if err := json.Unmarshal(qrBody, &qr); err != nil {
		return nil, &utils.GatewayError{Op: "resolve payment code", RawBody: string(qrRaw), Err: err}
	}

	code := qr.PixCopiaECola
	if code == "" {
		code = qr.Qrcode
	}
	if code == "" {
		return nil, &utils.GatewayError{
			Op:      "resolve payment code",
			RawBody: string(qrRaw),
			Err:     errors.New("response missing pixCopiaECola and qrcode"),
		}
	}

	return &ChargeHandle{
		ChargeID:    charge.Txid,
		PaymentCode: code,
		Raw:         raw,
	}, nil
}

func (e *efiClient) GetChargeStatus(ctx context.Context, chargeID string) (SettlementStatus, error) {

	body, raw, err := e.do(ctx, http.MethodGet, "/v2/cob/"+chargeID, nil)
	if err != nil {
		return SettlementStatus{}, err
	}

	var detail chargeDetailResponse
	if err := json.Unmarshal(body, &detail); err != nil {
		return SettlementStatus{}, &utils.GatewayError{Op: "detail charge", RawBody: string(raw), Err: err}
	}
	if detail.Status == "" {
		return SettlementStatus{}, &utils.GatewayError{
			Op:      "detail charge",
			RawBody: string(raw),
			Err:     errors.New("response missing status"),
		}
	}

	return SettlementStatus{
		Settled: detail.Status == settledStatus,
		Raw:     detail.Status,
	}, nil
}

// do performs one authenticated call, returning the body twice: once for
// decoding and once raw for error reporting.
func (e *efiClient) do(ctx context.Context, method, path string, payload interface{}) ([]byte, json.RawMessage, error) {

	var reqBody io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, nil, &utils.GatewayError{Op: method + " " + path, Err: err}
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, e.cfg.BaseURL+path, reqBody)
	if err != nil {
		return nil, nil, &utils.GatewayError{Op: method + " " + path, Err: err}
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, nil, &utils.GatewayError{Op: method + " " + path, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, &utils.GatewayError{Op: method + " " + path, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, nil, &utils.GatewayError{
			Op:      method + " " + path,
			RawBody: string(body),
			Err:     fmt.Errorf("unexpected status %d", resp.StatusCode),
		}
	}

	return body, body, nil
}
