/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"

	"github.com/friendsincode/taskslot/internal/slotengine"
)

const maxBodyBytes = 1 << 20

type validatorSvc struct {
	v     *validator.Validate
	trans ut.Translator
}

func newValidator() *validatorSvc {
	enLoc := en.New()
	uni := ut.New(enLoc, enLoc)
	trans, _ := uni.GetTranslator("en")

	v := validator.New(validator.WithRequiredStructEnabled())

	// Report fields by their JSON names.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		tag := fld.Tag.Get("json")
		if tag == "-" || tag == "" {
			return fld.Name
		}
		if idx := strings.Index(tag, ","); idx >= 0 {
			tag = tag[:idx]
		}
		return tag
	})
	_ = en_translations.RegisterDefaultTranslations(v, trans)

	_ = v.RegisterValidation("clock", func(fl validator.FieldLevel) bool {
		_, err := slotengine.ParseClock(fl.Field().String())
		return err == nil
	})
	_ = v.RegisterTranslation("clock", trans, func(tr ut.Translator) error {
		return tr.Add("clock", "{0} must be a time of day as HH:MM", true)
	}, func(tr ut.Translator, fe validator.FieldError) string {
		msg, _ := tr.T("clock", fe.Field())
		return msg
	})

	return &validatorSvc{v: v, trans: trans}
}

// fieldErrors translates validation failures keyed by JSON field name.
func (s *validatorSvc) fieldErrors(err error) map[string]string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return map[string]string{"_": err.Error()}
	}
	out := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		out[fe.Field()] = fe.Translate(s.trans)
	}
	return out
}

// bindJSON decodes and validates the body into dst. It writes the error
// response and returns false on failure. An empty body is accepted only when
// allowEmpty is set.
func (a *API) bindJSON(w http.ResponseWriter, r *http.Request, dst any, allowEmpty bool) bool {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if !(allowEmpty && errors.Is(err, io.EOF)) {
			writeError(w, http.StatusBadRequest, "invalid_json")
			return false
		}
	}
	if err := a.validate.v.Struct(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"error":  "validation_failed",
			"fields": a.validate.fieldErrors(err),
		})
		return false
	}
	return true
}
