// services/carrier_client.go
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gosimple/slug"

	"prize-redemption-system/models"
)

// ShipmentPackage describes the physical parcel for a prize.
type ShipmentPackage struct {
	SKU              string `json:"sku"`
	Description      string `json:"description"`
	WeightGrams      uint32 `json:"weightGrams"`
	LengthHundredths uint32 `json:"lengthHundredths"`
	WidthHundredths  uint32 `json:"widthHundredths"`
	HeightHundredths uint32 `json:"heightHundredths"`
}

// PackageForPrize builds the parcel spec; prizes without an explicit SKU
// fall back to a slug of their name.
func PackageForPrize(prize *models.Prize) ShipmentPackage {
	sku := prize.PhysicalSKU
	if sku == "" {
		sku = slug.Make(prize.Name)
	}
	return ShipmentPackage{
		SKU:              sku,
		Description:      prize.Name,
		WeightGrams:      prize.WeightGrams,
		LengthHundredths: prize.LengthHundredths,
		WidthHundredths:  prize.WidthHundredths,
		HeightHundredths: prize.HeightHundredths,
	}
}

// Shipment is the carrier's booking confirmation.
type Shipment struct {
	ID                string     `json:"id"`
	TrackingNumber    string     `json:"trackingNumber"`
	TrackingURL       string     `json:"trackingUrl,omitempty"`
	Carrier           string     `json:"carrier"`
	EstimatedDelivery *time.Time `json:"estimatedDelivery,omitempty"`
}

// CarrierClient books physical shipments. The address is passed through to
// the carrier and must not be retained by implementations.
type CarrierClient interface {
	CreateShipment(ctx context.Context, address *models.ShippingData, pkg ShipmentPackage) (*Shipment, error)
}

// HTTPCarrierClient talks to the shipping provider's booking API.
type HTTPCarrierClient struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
}

func NewHTTPCarrierClient(baseURL, apiKey string) *HTTPCarrierClient {
	return &HTTPCarrierClient{
		BaseURL: baseURL,
		APIKey:  apiKey,
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

func (c *HTTPCarrierClient) CreateShipment(ctx context.Context, address *models.ShippingData, pkg ShipmentPackage) (*Shipment, error) {
	payload := map[string]interface{}{
		"recipient": map[string]string{
			"name":    address.Name,
			"address": address.Address,
			"city":    address.City,
			"state":   address.State,
			"zip":     address.Zip,
			"country": address.Country,
			"phone":   address.Phone,
			"email":   address.Email,
		},
		"package": pkg,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode shipment request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.BaseURL+"/v1/shipments", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create shipment request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.APIKey)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("carrier booking call failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		// error bodies can echo the submitted address — do not propagate
		// carrier response text into our error chain
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("carrier returned status %d", resp.StatusCode)
	}

	var shipment Shipment
	if err := json.NewDecoder(resp.Body).Decode(&shipment); err != nil {
		return nil, fmt.Errorf("failed to decode shipment response: %w", err)
	}
	if shipment.ID == "" || shipment.TrackingNumber == "" {
		return nil, fmt.Errorf("carrier response missing shipment id or tracking number")
	}
	return &shipment, nil
}
