package assessment

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/firewatch/burn-severity-pipeline/pkg/assess"
)

func validRequest() assess.AssessRequest {
	return assess.AssessRequest{
		AOI:          testAOI,
		StartDate:    "2024-01-01",
		EndDate:      "2024-01-31",
		Deliverables: []string{assess.DeliverableRBR},
	}
}

func TestValidateRequest(t *testing.T) {
	t.Run("valid request", func(t *testing.T) {
		assert.NoError(t, ValidateRequest(validRequest()))
	})

	t.Run("AOI by path is accepted", func(t *testing.T) {
		req := validRequest()
		req.AOI = nil
		req.AOIPath = "fire.geojson"
		assert.NoError(t, ValidateRequest(req))
	})

	t.Run("malformed start date", func(t *testing.T) {
		req := validRequest()
		req.StartDate = "01/01/2024"
		assert.ErrorIs(t, ValidateRequest(req), ErrInvalidRequest)
	})

	t.Run("malformed end date", func(t *testing.T) {
		req := validRequest()
		req.EndDate = "2024-13-40"
		assert.ErrorIs(t, ValidateRequest(req), ErrInvalidRequest)
	})

	t.Run("start after end", func(t *testing.T) {
		req := validRequest()
		req.StartDate = "2024-02-01"
		req.EndDate = "2024-01-01"
		assert.ErrorIs(t, ValidateRequest(req), ErrInvalidRequest)
	})

	t.Run("missing AOI", func(t *testing.T) {
		req := validRequest()
		req.AOI = nil
		req.AOIPath = ""
		assert.ErrorIs(t, ValidateRequest(req), ErrInvalidRequest)
	})

	t.Run("no deliverables", func(t *testing.T) {
		req := validRequest()
		req.Deliverables = nil
		assert.ErrorIs(t, ValidateRequest(req), ErrInvalidRequest)
	})

	t.Run("unknown deliverable", func(t *testing.T) {
		req := validRequest()
		req.Deliverables = []string{"dnbr_histogram"}
		err := ValidateRequest(req)
		assert.ErrorIs(t, err, ErrInvalidRequest)
		assert.Contains(t, err.Error(), "dnbr_histogram")
	})
}
