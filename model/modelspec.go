package model

// PropertySpec describes one named reachability property attached to a model.
type PropertySpec struct {
	Name        string // e.g. "overflow unlikely"
	Description string // human meaning
	Formula     string // e.g. P<=0.1 [F "overflow"]
}

// ModelSpec is the small API that model packages implement.
type ModelSpec interface {
	Name() string
	OriginalText() string
	Build() (*System, error)
	Properties() []PropertySpec
	// Regions lists parameter boxes worth checking, in region.Parse syntax.
	Regions() []string
}
