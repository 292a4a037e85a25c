package fishnerf

var (
	Progress = true // set to false to silence progress bars (tests do)
	// Compile time checks to ensure the query and sampling contracts are
	// implemented by all required types
	_ ImplicitVolume = (*HomogeneousVolume)(nil)
	_ ImplicitVolume = (*VoxelGridVolume)(nil)
	_ Sampler        = (*StratifiedSampler)(nil)
	_ Sampler        = (*HierarchicalSampler)(nil)
	_ importance     = (*HierarchicalSampler)(nil)
)
