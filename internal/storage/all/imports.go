// Package all wires the built-in storage backends into the storage factory.
//
// Importing it for side effects makes the following kinds available to
// storage.New and storage.EnsureTable:
//
//   - "postgres" (csvtransform/internal/storage/postgres)
//   - "sqlite"   (csvtransform/internal/storage/sqlite)
//
// Typical usage:
//
//	import _ "csvtransform/internal/storage/all"
//
// A binary that needs only one backend can import that backend directly.
package all

import (
	_ "csvtransform/internal/storage/postgres"
	_ "csvtransform/internal/storage/sqlite"
)
