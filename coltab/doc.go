// Package coltab stores columnar tables in a hierarchical array store.
//
// A table is a group whose members are equal-length, one-dimensional typed
// arrays, one per column. Tables are written and read as frame.Frame
// values: numeric, boolean, string and categorical columns.
//
// # Opening a store
//
// A store is addressed by a URI of the form scheme://location::/group,
// where the optional ::/group suffix selects a group inside the store that
// acts as the root for table names:
//
//	/data/run1                  Zarr directory
//	file:///data/run1::/raw     Zarr directory, tables under /raw
//	mem://scratch               in-process memory store named "scratch"
//	s3://bucket/prefix          Zarr layout in an S3 bucket
//	gs://bucket/prefix          Zarr layout in a GCS bucket
//
// Example:
//
//	store, err := coltab.Open(ctx, "/data/run1")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer store.Close()
//
//	err = store.CreateTable("events", coltab.WithColumnTypes(
//	    coltab.ColumnSpec{Name: "t", Type: "float64"},
//	    coltab.ColumnSpec{Name: "kind", Type: "category"},
//	))
//	err = store.Append("events", frame.MustNew(
//	    []string{"t", "kind"},
//	    frame.Float64{0.5, 1.5},
//	    frame.NewCategorical([]string{"open", "close"}),
//	))
//	f, err := store.Select("events", coltab.WithRange(0, 10))
//
// # Categorical columns
//
// Categorical columns are stored as int32 codes with -1 marking rows
// without a label. The labels are kept in the array's "categories"
// attribute and, where the backend supports enumerated types, also as an
// enumeration on the array's type. Appending rows with labels not yet seen
// extends the stored list.
//
// # Strings
//
// Strings are stored as fixed-width, NUL-padded ISO-8859-1 byte strings.
// Characters outside ISO-8859-1 fail with ErrUnencodable unless the store
// was opened WithLossyText.
//
// # Concurrency
//
// A Store is meant for a single writer. Reads may run concurrently with
// each other; nothing coordinates writers across stores.
package coltab
