// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package index

import "errors"

var (
	// ErrSchemaSetup indicates the backing class could not be created or
	// verified.
	ErrSchemaSetup = errors.New("index schema setup failed")

	// ErrInsertFailed indicates a batch insert was rejected by the store.
	ErrInsertFailed = errors.New("index insert failed")

	// ErrQueryFailed indicates a relevance query was rejected by the
	// store.
	ErrQueryFailed = errors.New("index query failed")
)
