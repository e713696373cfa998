package purchases

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/snapsticker/backend/internal/apperr"
)

// PlayStoreValidator verifies Android purchase tokens against a Google Play
// verification endpoint. Play verification is additionally scoped by the
// app's package name.
type PlayStoreValidator struct {
	verifyURL   string
	packageName string
	httpClient  *http.Client
}

func NewPlayStoreValidator(verifyURL, packageName string) *PlayStoreValidator {
	return &PlayStoreValidator{
		verifyURL:   verifyURL,
		packageName: packageName,
		httpClient:  &http.Client{Timeout: 10 * time.Second},
	}
}

var _ ReceiptValidator = (*PlayStoreValidator)(nil)

type playStoreRequest struct {
	PurchaseToken string `json:"purchase_token"`
	ProductID     string `json:"product_id"`
	PackageName   string `json:"package_name"`
}

type playStoreResponse struct {
	Valid         bool      `json:"valid"`
	ProductID     string    `json:"product_id"`
	TransactionID string    `json:"order_id"`
	PurchaseDate  time.Time `json:"purchase_time"`
	Reason        string    `json:"reason"`
}

func (v *PlayStoreValidator) Validate(ctx context.Context, payload, productID string) (*ValidationResult, error) {
	body, err := json.Marshal(playStoreRequest{
		PurchaseToken: payload,
		ProductID:     productID,
		PackageName:   v.packageName,
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.verifyURL, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := v.httpClient.Do(req)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeNoConnection, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, apperr.Classify(&apperr.StatusError{
			Status:  resp.StatusCode,
			Message: fmt.Sprintf("play verification returned status %d", resp.StatusCode),
		})
	}

	var out playStoreResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, apperr.Wrap(apperr.CodeServerError, err)
	}
	if !out.Valid {
		return nil, apperr.New(apperr.CodeInvalidReceipt,
			fmt.Sprintf("google play rejected purchase token: %s", out.Reason))
	}

	return &ValidationResult{
		ProductID:     out.ProductID,
		TransactionID: out.TransactionID,
		PurchaseDate:  out.PurchaseDate,
	}, nil
}
