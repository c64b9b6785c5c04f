// Package http provides the JSON API server and its handlers.
//
// This file parses deposit payloads. Both JSON and multipart/form-data are
// accepted; a multipart "photo" file is turned into a data URL.

package http

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/shopspring/decimal"

	"depositos/internal/core"
	applog "depositos/internal/log"
)

// MaxBodyBytes bounds every request body, photo included.
const MaxBodyBytes = 10 << 20

// amountField accepts a JSON number or string, with either decimal separator.
type amountField struct {
	decimal.Decimal
}

func (a *amountField) UnmarshalJSON(b []byte) error {
	s := strings.Trim(strings.TrimSpace(string(b)), `"`)
	d, err := core.ParseAmount(s)
	if err != nil {
		return err
	}
	a.Decimal = d
	return nil
}

// depositInput is the union of create and patch payloads. Absent fields stay nil.
type depositInput struct {
	MemberID    *string      `json:"memberId"`
	FirstName   *string      `json:"firstName"`
	Amount      *amountField `json:"amount"`
	Date        *core.Date   `json:"date"`
	Code        *string      `json:"code"`
	Photo       *string      `json:"photo"`
	RemovePhoto bool         `json:"removePhoto"`
}

func (in depositInput) toNew() (core.NewDeposit, error) {
	var out core.NewDeposit
	if in.Amount == nil {
		return out, fmt.Errorf("%w: amount is required", core.ErrInvalidAmount)
	}
	if in.Date == nil {
		return out, fmt.Errorf("%w: date is required", core.ErrInvalidDate)
	}
	out.Amount = in.Amount.Decimal
	out.Date = *in.Date
	out.MemberID = deref(in.MemberID)
	out.FirstName = sanitizeInput(deref(in.FirstName))
	out.Code = sanitizeInput(deref(in.Code))
	out.Photo = deref(in.Photo)
	return out, nil
}

func (in depositInput) toPatch() core.DepositPatch {
	p := core.DepositPatch{
		MemberID:    in.MemberID,
		Code:        in.Code,
		Date:        in.Date,
		Photo:       in.Photo,
		RemovePhoto: in.RemovePhoto,
	}
	if in.FirstName != nil {
		name := sanitizeInput(*in.FirstName)
		p.FirstName = &name
	}
	if in.Amount != nil {
		p.Amount = &in.Amount.Decimal
	}
	return p
}

// parseDepositInput reads r as JSON or multipart. A photo that cannot be read
// is dropped with a warning; the rest of the payload is still used.
func parseDepositInput(w http.ResponseWriter, r *http.Request) (depositInput, error) {
	r.Body = http.MaxBytesReader(w, r.Body, MaxBodyBytes)

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch mediaType {
	case "multipart/form-data":
		return parseMultipartDeposit(r)
	default:
		var in depositInput
		if err := decodeJSON(r, &in); err != nil {
			return in, err
		}
		if in.Photo != nil && *in.Photo != "" {
			photo, err := normalizePhoto(*in.Photo)
			if err != nil {
				return in, err
			}
			in.Photo = &photo
		}
		return in, nil
	}
}

func parseMultipartDeposit(r *http.Request) (depositInput, error) {
	var in depositInput
	if err := r.ParseMultipartForm(MaxBodyBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return in, err
		}
		return in, fmt.Errorf("%w: %v", errBadRequest, err)
	}

	in.MemberID = formValue(r, "memberId")
	in.FirstName = formValue(r, "firstName")
	in.Code = formValue(r, "code")
	if v := formValue(r, "amount"); v != nil {
		d, err := core.ParseAmount(*v)
		if err != nil {
			return in, err
		}
		in.Amount = &amountField{Decimal: d}
	}
	if v := formValue(r, "date"); v != nil {
		d, err := core.ParseDate(*v)
		if err != nil {
			return in, err
		}
		in.Date = &d
	}
	if v := formValue(r, "removePhoto"); v != nil {
		in.RemovePhoto = *v == "true" || *v == "1"
	}

	file, _, err := r.FormFile("photo")
	switch {
	case errors.Is(err, http.ErrMissingFile):
	case err != nil:
		logPhotoDropped(r, err)
	default:
		defer file.Close()
		photo, err := readPhoto(file)
		if err != nil {
			logPhotoDropped(r, err)
			break
		}
		in.Photo = &photo
	}
	return in, nil
}

func logPhotoDropped(r *http.Request, err error) {
	applog.FromContext(r.Context()).WarnContext(r.Context(), "Photo upload ignored",
		applog.FieldError, err.Error(),
		applog.FieldErrorType, applog.ErrorTypeValidation)
}

// readPhoto encodes an uploaded file as a data URL.
func readPhoto(f io.Reader) (string, error) {
	data, err := io.ReadAll(f)
	if err != nil {
		return "", fmt.Errorf("read photo: %w", err)
	}
	return encodePhoto(data)
}

func encodePhoto(data []byte) (string, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("%w: empty file", errInvalidPhoto)
	}
	mt := mimetype.Detect(data)
	if !acceptedPhoto(mt) {
		return "", fmt.Errorf("%w: unsupported type %s", errInvalidPhoto, mt.String())
	}
	return "data:" + mt.String() + ";base64," + base64.StdEncoding.EncodeToString(data), nil
}

func acceptedPhoto(mt *mimetype.MIME) bool {
	return strings.HasPrefix(mt.String(), "image/") || mt.Is("application/pdf")
}

// normalizePhoto accepts a data URL or bare base64 and returns a data URL
// whose media type matches the content.
func normalizePhoto(s string) (string, error) {
	s = strings.TrimSpace(s)
	payload := s
	if strings.HasPrefix(s, "data:") {
		_, after, ok := strings.Cut(s, ";base64,")
		if !ok {
			return "", fmt.Errorf("%w: data URL must be base64", errInvalidPhoto)
		}
		payload = after
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", fmt.Errorf("%w: %v", errInvalidPhoto, err)
	}
	return encodePhoto(data)
}

// decodeJSON reads a single JSON object from r into v.
func decodeJSON(r *http.Request, v any) error {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return err
		}
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return fmt.Errorf("%w: empty body", errBadRequest)
	}
	if err := json.Unmarshal(body, v); err != nil {
		// Domain errors raised by field decoders keep their meaning.
		for _, known := range validationErrors {
			if errors.Is(err, known) {
				return err
			}
		}
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	return nil
}

func formValue(r *http.Request, key string) *string {
	if r.MultipartForm == nil {
		return nil
	}
	vs, ok := r.MultipartForm.Value[key]
	if !ok || len(vs) == 0 {
		return nil
	}
	v := strings.TrimSpace(vs[0])
	return &v
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
