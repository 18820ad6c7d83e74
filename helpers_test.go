package llmprovider

func ptr[T any](v T) *T { return &v }

func stringPtr(s string) *string    { return ptr(s) }
func intPtr(i int) *int             { return ptr(i) }
func float64Ptr(f float64) *float64 { return ptr(f) }
func boolPtr(b bool) *bool          { return ptr(b) }
