package http

import (
	"brokerage/pkg/config"
	apperrors "brokerage/pkg/errors"
	"brokerage/pkg/middleware"
	"brokerage/pkg/model"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
)

func ExtractLimitOffset(r *http.Request) (int, int64, error) {
	query := r.URL.Query()

	limit := 0
	if s := query.Get("limit"); s != "" {
		v, err := strconv.Atoi(s)
		if err != nil {
			return 0, 0, apperrors.InvalidInput("invalid limit parameter: " + s)
		}
		limit = v
	}

	var offset int64
	if s := query.Get("offset"); s != "" {
		v, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return 0, 0, apperrors.InvalidInput("invalid offset parameter: " + s)
		}
		offset = v
	}

	return config.NormalizePaginationLimit(limit), config.NormalizeOffset(offset), nil
}

// ExtractVisitFilter reads status, start, end, limit and offset. Bounds
// are RFC3339 and inclusive.
func ExtractVisitFilter(r *http.Request) (model.VisitFilter, error) {
	query := r.URL.Query()
	var filter model.VisitFilter

	if s := query.Get("status"); s != "" {
		status := model.VisitStatus(strings.ToUpper(s))
		if !status.Valid() {
			return filter, apperrors.InvalidInput("invalid status parameter: " + s)
		}
		filter.Status = &status
	}

	start, err := parseTimeParam(query.Get("start"), "start")
	if err != nil {
		return filter, err
	}
	end, err := parseTimeParam(query.Get("end"), "end")
	if err != nil {
		return filter, err
	}
	if start != nil && end != nil && end.Before(*start) {
		return filter, apperrors.InvalidInput("end must not be before start")
	}
	if start != nil || end != nil {
		filter.Range = &model.DateRange{Start: start, End: end}
	}

	filter.Limit, filter.Offset, err = ExtractLimitOffset(r)
	return filter, err
}

// ExtractScopedVisitFilter reads the same parameters for the per-customer
// and per-property listings. Those return every matching visit unless the
// caller passes limit.
func ExtractScopedVisitFilter(r *http.Request) (model.VisitFilter, error) {
	filter, err := ExtractVisitFilter(r)
	if err != nil {
		return filter, err
	}
	if r.URL.Query().Get("limit") == "" {
		filter.Limit = 0
	}
	return filter, nil
}

func parseTimeParam(value, name string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return nil, apperrors.InvalidInput("invalid " + name + " parameter, expected RFC3339: " + value)
	}
	return &t, nil
}

// ExtractCaller returns the user id the gateway put in X-User-ID.
func ExtractCaller(r *http.Request) (int64, error) {
	raw := r.Header.Get(middleware.CallerHeader)
	if raw == "" {
		return 0, apperrors.Unauthorized("missing caller identity")
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, apperrors.Unauthorized("invalid caller identity")
	}
	return id, nil
}

func ParseInt64Param(value, name string) (int64, error) {
	id, err := strconv.ParseInt(value, 10, 64)
	if err != nil || id <= 0 {
		return 0, apperrors.InvalidInput("invalid " + name + ": " + value)
	}
	return id, nil
}

// DecodeJSON decodes a single JSON object, rejecting unknown fields.
func DecodeJSON(r *http.Request, dst any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()

	if err := decoder.Decode(dst); err != nil {
		var maxBytesErr *http.MaxBytesError
		switch {
		case errors.As(err, &maxBytesErr):
			return apperrors.New(apperrors.CodeInvalidInput, "request body too large", http.StatusRequestEntityTooLarge)
		case errors.Is(err, io.EOF):
			return apperrors.InvalidInput("request body is required")
		default:
			return apperrors.InvalidInput("invalid request body: " + err.Error())
		}
	}
	return nil
}
