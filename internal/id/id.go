// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package id

import (
	"fmt"
	"strings"

	"github.com/hashicorp/go-uuid"
)

// New generates a random ID with an optional prefix. The ID is suitable for
// use as an oauth2 state or an oidc nonce.
func New(optionalPrefix string) (string, error) {
	const op = "id.New"
	id, err := uuid.GenerateUUID()
	if err != nil {
		return "", fmt.Errorf("%s: unable to generate id: %w", op, err)
	}
	id = strings.ReplaceAll(id, "-", "")
	switch {
	case optionalPrefix != "":
		return fmt.Sprintf("%s_%s", optionalPrefix, id), nil
	default:
		return id, nil
	}
}
