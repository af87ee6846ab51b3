package models

import "sort"

// Cluster is one category of the backend's clustering result.
type Cluster struct {
	Files []string `json:"files" msgpack:"files"`
}

// ClusterSet maps category names to their member files.
type ClusterSet map[string]Cluster

// ClusterListing is the body returned by the backend's listing endpoint.
type ClusterListing struct {
	Clusters ClusterSet `json:"clusters"`
}

// Empty reports whether the set has no categories.
func (cs ClusterSet) Empty() bool {
	return len(cs) == 0
}

// Categories returns the category names in sorted order.
func (cs ClusterSet) Categories() []string {
	names := make([]string, 0, len(cs))
	for name := range cs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Clone returns a deep copy of the set.
func (cs ClusterSet) Clone() ClusterSet {
	if cs == nil {
		return nil
	}
	out := make(ClusterSet, len(cs))
	for name, c := range cs {
		files := make([]string, len(c.Files))
		copy(files, c.Files)
		out[name] = Cluster{Files: files}
	}
	return out
}
