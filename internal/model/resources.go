package model

// Resource names a capacity dimension
type Resource string

const (
	ResourceCPU     Resource = "cpu"
	ResourceMemory  Resource = "memory"
	ResourceStorage Resource = "storage"
	ResourceNetwork Resource = "network"
)

// AllResources lists every capacity dimension in a stable order
var AllResources = []Resource{ResourceCPU, ResourceMemory, ResourceStorage, ResourceNetwork}

// Valid reports whether r is a known resource
func (r Resource) Valid() bool {
	switch r {
	case ResourceCPU, ResourceMemory, ResourceStorage, ResourceNetwork:
		return true
	}
	return false
}

// Resources holds one value per capacity dimension
type Resources struct {
	CPU     float64 `json:"cpu"`
	Memory  float64 `json:"memory"`
	Storage float64 `json:"storage"`
	Network float64 `json:"network"`
}

// Get returns the value for a resource
func (r Resources) Get(res Resource) float64 {
	switch res {
	case ResourceCPU:
		return r.CPU
	case ResourceMemory:
		return r.Memory
	case ResourceStorage:
		return r.Storage
	case ResourceNetwork:
		return r.Network
	}
	return 0
}

// Set stores the value for a resource
func (r *Resources) Set(res Resource, v float64) {
	switch res {
	case ResourceCPU:
		r.CPU = v
	case ResourceMemory:
		r.Memory = v
	case ResourceStorage:
		r.Storage = v
	case ResourceNetwork:
		r.Network = v
	}
}

// Add returns the element-wise sum
func (r Resources) Add(o Resources) Resources {
	return Resources{
		CPU:     r.CPU + o.CPU,
		Memory:  r.Memory + o.Memory,
		Storage: r.Storage + o.Storage,
		Network: r.Network + o.Network,
	}
}

// Scale returns every dimension multiplied by f
func (r Resources) Scale(f float64) Resources {
	return Resources{
		CPU:     r.CPU * f,
		Memory:  r.Memory * f,
		Storage: r.Storage * f,
		Network: r.Network * f,
	}
}

// IsZero reports whether every dimension is zero
func (r Resources) IsZero() bool {
	return r == Resources{}
}
