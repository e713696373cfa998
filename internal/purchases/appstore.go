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

// AppStoreValidator verifies iOS receipts against an App Store verification
// endpoint. The receipt cryptography itself is the endpoint's problem; this
// client only maps its responses into classified errors.
type AppStoreValidator struct {
	verifyURL  string
	httpClient *http.Client
}

func NewAppStoreValidator(verifyURL string) *AppStoreValidator {
	return &AppStoreValidator{
		verifyURL:  verifyURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

var _ ReceiptValidator = (*AppStoreValidator)(nil)

type appStoreRequest struct {
	ReceiptData string `json:"receipt-data"`
	ProductID   string `json:"product_id"`
}

type appStoreResponse struct {
	Valid         bool      `json:"valid"`
	ProductID     string    `json:"product_id"`
	TransactionID string    `json:"transaction_id"`
	PurchaseDate  time.Time `json:"purchase_date"`
	Reason        string    `json:"reason"`
}

func (v *AppStoreValidator) Validate(ctx context.Context, payload, productID string) (*ValidationResult, error) {
	body, err := json.Marshal(appStoreRequest{ReceiptData: payload, ProductID: productID})
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
			Message: fmt.Sprintf("app store verification returned status %d", resp.StatusCode),
		})
	}

	var out appStoreResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, apperr.Wrap(apperr.CodeServerError, err)
	}
	if !out.Valid {
		return nil, apperr.New(apperr.CodeInvalidReceipt,
			fmt.Sprintf("app store rejected receipt: %s", out.Reason))
	}

	return &ValidationResult{
		ProductID:     out.ProductID,
		TransactionID: out.TransactionID,
		PurchaseDate:  out.PurchaseDate,
	}, nil
}
