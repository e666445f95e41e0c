package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/dukerupert/addrfmt/internal/address"
	"github.com/dukerupert/addrfmt/internal/dataset"
	"github.com/dukerupert/addrfmt/internal/domain"
	"github.com/dukerupert/addrfmt/internal/handler"
	"github.com/dukerupert/addrfmt/internal/middleware"
	"github.com/dukerupert/addrfmt/internal/router"
	"github.com/dukerupert/addrfmt/internal/telemetry"
)

// AddressHandler serves the address formatting API. Every request builds
// its own Formatter over the shared provider.
type AddressHandler struct {
	provider  dataset.Provider
	validator address.Validator
	metrics   *telemetry.BusinessMetrics
	validate  *validator.Validate
	logger    *slog.Logger
}

// NewAddressHandler creates the handler. metrics may be nil.
func NewAddressHandler(provider dataset.Provider, metrics *telemetry.BusinessMetrics, logger *slog.Logger) *AddressHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &AddressHandler{
		provider:  provider,
		validator: address.NewSchemaValidator(provider),
		metrics:   metrics,
		validate:  newValidator(),
		logger:    logger,
	}
}

// WithValidator replaces the address validator, for tests.
func (h *AddressHandler) WithValidator(v address.Validator) *AddressHandler {
	h.validator = v
	return h
}

// RegisterRoutes mounts the API on r. POST bodies are capped at maxBody bytes.
func (h *AddressHandler) RegisterRoutes(r *router.Router, maxBody int64) {
	limit := router.Middleware(middleware.MaxBodySize(maxBody))

	r.Get("/health", h.Health)
	r.Get("/api/countries", h.ListCountries)
	r.Get("/api/countries/codes", h.ListCodes)
	r.Get("/api/countries/{code}", h.GetCountry)
	r.Get("/api/countries/{code}/fields", h.GetFields)
	r.Get("/api/countries/{code}/postal", h.CheckPostalCode)
	r.Post("/api/countries/{code}/format", h.Format, limit)
	r.Post("/api/countries/{code}/validate", h.Validate, limit)
}

// Health handles GET /health. The dataset counts as reachable when the
// fallback record loads.
func (h *AddressHandler) Health(w http.ResponseWriter, r *http.Request) {
	if _, err := h.provider.LoadFallbackSchema(r.Context()); err != nil && !errors.Is(err, dataset.ErrNotFound) {
		handler.ErrorResponse(w, r, domain.Unavailable(err, "health", "Dataset unavailable"))
		return
	}
	handler.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ListCountries handles GET /api/countries
func (h *AddressHandler) ListCountries(w http.ResponseWriter, r *http.Request) {
	countries, err := address.NewFormatter(h.provider).CountryList(r.Context())
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}
	if countries == nil {
		countries = []dataset.Country{}
	}
	handler.JSON(w, http.StatusOK, countries)
}

// ListCodes handles GET /api/countries/codes
func (h *AddressHandler) ListCodes(w http.ResponseWriter, r *http.Request) {
	codes, err := address.NewFormatter(h.provider).CountryCodes(r.Context())
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}
	handler.JSON(w, http.StatusOK, codes)
}

type countryResponse struct {
	Code        string              `json:"code"`
	Name        string              `json:"name"`
	PostalField string              `json:"postal_field"`
	Fields      []address.FieldInfo `json:"fields"`
}

// GetCountry handles GET /api/countries/{code}
func (h *AddressHandler) GetCountry(w http.ResponseWriter, r *http.Request) {
	f, err := h.selectCountry(r.Context(), r.PathValue("code"))
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	recordName, err := f.CountryName(r.Context(), "")
	if err != nil && !errors.Is(err, address.ErrUnknownLocale) {
		handler.ErrorResponse(w, r, err)
		return
	}

	fields, err := h.fields(f)
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	postal, _ := f.PostalFieldName()
	handler.JSON(w, http.StatusOK, countryResponse{
		Code:        f.Country(),
		Name:        dataset.DisplayName(f.Country(), recordName),
		PostalField: postal,
		Fields:      fields,
	})
}

// GetFields handles GET /api/countries/{code}/fields
func (h *AddressHandler) GetFields(w http.ResponseWriter, r *http.Request) {
	f, err := h.selectCountry(r.Context(), r.PathValue("code"))
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	fields, err := h.fields(f)
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}
	handler.JSON(w, http.StatusOK, fields)
}

// fields treats a country without a template as having no fields.
func (h *AddressHandler) fields(f *address.Formatter) ([]address.FieldInfo, error) {
	fields, err := f.AddressFields()
	if errors.Is(err, address.ErrNoTemplate) {
		return []address.FieldInfo{}, nil
	}
	return fields, err
}

type postalResponse struct {
	PostalField string `json:"postal_field"`
	Value       string `json:"value"`
	Valid       bool   `json:"valid"`
	Checked     bool   `json:"checked"`
}

// CheckPostalCode handles GET /api/countries/{code}/postal?value=...
// Checked is false when the country has no postal pattern.
func (h *AddressHandler) CheckPostalCode(w http.ResponseWriter, r *http.Request) {
	value := strings.TrimSpace(r.URL.Query().Get("value"))
	if value == "" {
		handler.ValidationErrorResponse(w, r, domain.NewValidationError("address.postal", "value", "value is required"))
		return
	}

	f, err := h.selectCountry(r.Context(), r.PathValue("code"))
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	binding, _ := f.PostalField()
	valid, err := f.ValidatePostalCode(address.Record{string(binding.Field): value})
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}
	h.metrics.RecordPostalValidation(f.Country(), valid)

	handler.JSON(w, http.StatusOK, postalResponse{
		PostalField: binding.Name,
		Value:       value,
		Valid:       valid,
		Checked:     f.Schema().HasPostalPattern(),
	})
}

type formatRequest struct {
	Address   *address.Address  `json:"address" validate:"required_without=Fields,excluded_with=Fields"`
	Fields    map[string]string `json:"fields" validate:"required_without=Address"`
	Delimiter *string           `json:"delimiter" validate:"omitempty,max=16"`
}

type formatResponse struct {
	Country   string   `json:"country"`
	Lines     []string `json:"lines,omitempty"`
	Formatted *string  `json:"formatted,omitempty"`
}

// Format handles POST /api/countries/{code}/format.
// The body carries either a typed "address" or a raw "fields" record keyed
// by country-specific or canonical field names. With a delimiter the lines
// are joined into "formatted". An empty delimiter counts as absent.
func (h *AddressHandler) Format(w http.ResponseWriter, r *http.Request) {
	var req formatRequest
	if err := decodeJSON(r, h.validate, "address.format", &req); err != nil {
		handler.ValidationErrorResponse(w, r, err)
		return
	}

	f, err := h.selectCountry(r.Context(), r.PathValue("code"))
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}
	country := f.Country()

	rec := address.Record(req.Fields)
	if req.Address != nil {
		rec = req.Address.Record()
	}

	resp := formatResponse{Country: country}
	mode := "lines"
	if req.Delimiter != nil && *req.Delimiter != "" {
		mode = "joined"
		formatted, err := f.Format(rec, *req.Delimiter)
		if err != nil {
			h.formatFailed(w, r, country, err)
			return
		}
		resp.Formatted = &formatted
	} else {
		lines, err := f.Lines(rec)
		if err != nil {
			h.formatFailed(w, r, country, err)
			return
		}
		if lines == nil {
			lines = []string{}
		}
		resp.Lines = lines
	}

	h.metrics.RecordFormat(country, mode)
	handler.JSON(w, http.StatusOK, resp)
}

func (h *AddressHandler) formatFailed(w http.ResponseWriter, r *http.Request, country string, err error) {
	reason := "error"
	switch {
	case errors.Is(err, address.ErrNoTemplate):
		reason = "no_template"
	case errors.Is(err, address.ErrUnresolvedPlaceholder):
		reason = "unresolved_placeholder"
	}
	h.metrics.RecordFormatFailure(country, reason)
	handler.ErrorResponse(w, r, err)
}

type validateRequest struct {
	Address address.Address `json:"address" validate:"required"`
}

// Validate handles POST /api/countries/{code}/validate. The path code wins
// over any country in the body.
func (h *AddressHandler) Validate(w http.ResponseWriter, r *http.Request) {
	var req validateRequest
	if err := decodeJSON(r, h.validate, "address.validate", &req); err != nil {
		handler.ValidationErrorResponse(w, r, err)
		return
	}

	req.Address.Country = dataset.NormalizeCode(r.PathValue("code"))
	result, err := h.validator.Validate(r.Context(), req.Address)
	if err != nil {
		handler.ErrorResponse(w, r, domain.Internal(err, "address.validate", "address validation failed"))
		return
	}

	h.metrics.RecordAddressValidation(req.Address.Country, result.IsValid)
	middleware.GetLogger(r.Context(), h.logger).Debug("address validated",
		"country", req.Address.Country,
		"valid", result.IsValid,
		"errors", len(result.Errors),
	)
	handler.JSON(w, http.StatusOK, result)
}

// selectCountry builds a request-scoped Formatter for code.
func (h *AddressHandler) selectCountry(ctx context.Context, code string) (*address.Formatter, error) {
	f := address.NewFormatter(h.provider)
	err := f.SelectCountry(ctx, code)
	switch {
	case err == nil:
		h.metrics.RecordSchemaLoad("ok")
	case errors.Is(err, address.ErrUnknownLocale):
		h.metrics.RecordSchemaLoad("unknown")
	default:
		h.metrics.RecordSchemaLoad("error")
	}
	return f, err
}
