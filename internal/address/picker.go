// Package address adapts the Daum postcode search popup to an internal address
// record.
package address

import (
	"context"
	"errors"
	"strings"

	"civic-reports/internal/models"
)

// ErrCancelled means the resident closed the popup without choosing an address.
// It is not a failure.
var ErrCancelled = errors.New("address search cancelled")

// Popup close states reported by the postcode widget.
const (
	StateComplete      = "COMPLETE"
	StateForceClose    = "FORCE_CLOSE"
	StateCompleteClose = "COMPLETE_CLOSE"
)

// Picker opens the interactive address search and waits for its outcome.
type Picker interface {
	Open(ctx context.Context) (models.AddressData, error)
}

// PostcodeResult is the oncomplete payload of the Daum postcode widget.
type PostcodeResult struct {
	Address      string `json:"address"`
	RoadAddress  string `json:"roadAddress"`
	JibunAddress string `json:"jibunAddress"`
	Sido         string `json:"sido"`
	Sigungu      string `json:"sigungu"`
	Roadname     string `json:"roadname"`
	BuildingName string `json:"buildingName"`
	Zonecode     string `json:"zonecode"`
}

// ToAddressData fills the road and jibun forms from the base address when the
// widget left them empty.
func (p PostcodeResult) ToAddressData() models.AddressData {
	return models.AddressData{
		FullAddress:  p.Address,
		RoadAddress:  firstNonEmpty(p.RoadAddress, p.Address),
		JibunAddress: firstNonEmpty(p.JibunAddress, p.Address),
		Sido:         p.Sido,
		Sigungu:      p.Sigungu,
		Roadname:     p.Roadname,
		BuildingName: p.BuildingName,
		Zipcode:      p.Zonecode,
	}
}

// PopupOutcome is what the client reports once the popup is gone: either a
// completed selection or the state it was closed in.
type PopupOutcome struct {
	State  string          `json:"state"`
	Result *PostcodeResult `json:"result,omitempty"`
}

// PayloadPicker resolves with an outcome the client already collected.
type PayloadPicker struct {
	Outcome PopupOutcome
}

func (p PayloadPicker) Open(ctx context.Context) (models.AddressData, error) {
	if err := ctx.Err(); err != nil {
		return models.AddressData{}, err
	}
	if p.Outcome.Result == nil || strings.TrimSpace(p.Outcome.Result.Address) == "" {
		return models.AddressData{}, ErrCancelled
	}
	switch p.Outcome.State {
	case "", StateComplete, StateCompleteClose:
		return p.Outcome.Result.ToAddressData(), nil
	default:
		return models.AddressData{}, ErrCancelled
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
