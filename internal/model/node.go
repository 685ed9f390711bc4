package model

// Node represents a scheduler node of a datacenter cluster
type Node struct {
	ID                    string `json:"id"`
	Name                  string `json:"name"`
	Drain                 bool   `json:"drain"`
	SchedulingEligibility string `json:"scheduling_eligibility"` // "eligible" or "ineligible"
	Status                string `json:"status"`
}

// IsReady returns true if node can accept new allocations
// A node is ready when it's up, not draining AND is eligible for scheduling
func (n *Node) IsReady() bool {
	return n.Status == "ready" && !n.Drain && n.SchedulingEligibility == "eligible"
}

// ClusterHealth summarizes the scheduler cluster backing a datacenter
type ClusterHealth struct {
	Datacenter string `json:"datacenter"`
	Leader     string `json:"leader"`
	NodesTotal int    `json:"nodes_total"`
	NodesReady int    `json:"nodes_ready"`
}

// Healthy reports whether the cluster has a leader and at least one ready node
func (c *ClusterHealth) Healthy() bool {
	return c.Leader != "" && c.NodesReady > 0
}
