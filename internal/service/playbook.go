package service

import (
	"github.com/kirychukyurii/dr-orchestrator/internal/model"
)

func automatic(description string, kind model.RemediationKind, value string) model.IncidentAction {
	return model.IncidentAction{
		Description: description,
		Type:        model.ActionAutomatic,
		Remediation: &model.Remediation{Kind: kind, Value: value},
	}
}

func manual(description string) model.IncidentAction {
	return model.IncidentAction{
		Description: description,
		Type:        model.ActionManual,
	}
}

// defaultPlaybooks are the response procedures applied per incident type
var defaultPlaybooks = map[model.IncidentType]model.Playbook{
	model.IncidentPowerOutage: {
		Name: "power-outage-response",
		Type: model.IncidentPowerOutage,
		Actions: []model.IncidentAction{
			automatic("Notify on-call and facility operators", model.RemediationNotify, ""),
			automatic("Fail over traffic from affected datacenters", model.RemediationFailover, ""),
			manual("Verify generator and UPS status on site"),
		},
	},
	model.IncidentNetworkFailure: {
		Name: "network-failure-response",
		Type: model.IncidentNetworkFailure,
		Actions: []model.IncidentAction{
			automatic("Notify network operations", model.RemediationNotify, ""),
			automatic("Fail over traffic from affected datacenters", model.RemediationFailover, ""),
			manual("Open tickets with upstream link providers"),
		},
	},
	model.IncidentHardwareFailure: {
		Name: "hardware-failure-response",
		Type: model.IncidentHardwareFailure,
		Actions: []model.IncidentAction{
			automatic("Notify infrastructure team", model.RemediationNotify, ""),
			automatic("Put affected datacenters into maintenance", model.RemediationDatacenterStatus, string(model.DatacenterStatusMaintenance)),
			manual("Replace failed hardware"),
		},
	},
	model.IncidentNaturalDisaster: {
		Name: "natural-disaster-response",
		Type: model.IncidentNaturalDisaster,
		Actions: []model.IncidentAction{
			automatic("Notify incident commander and executives", model.RemediationNotify, ""),
			automatic("Fail over traffic from affected datacenters", model.RemediationFailover, ""),
			automatic("Mark affected datacenters offline", model.RemediationDatacenterStatus, string(model.DatacenterStatusOffline)),
			manual("Assess site damage with facility operators"),
		},
	},
}

// playbookFor returns the playbook of an incident type
func playbookFor(t model.IncidentType) (model.Playbook, bool) {
	pb, ok := defaultPlaybooks[t]
	return pb, ok
}

// Playbooks returns every default playbook
func Playbooks() []model.Playbook {
	out := make([]model.Playbook, 0, len(defaultPlaybooks))
	for _, t := range []model.IncidentType{
		model.IncidentPowerOutage,
		model.IncidentNetworkFailure,
		model.IncidentHardwareFailure,
		model.IncidentNaturalDisaster,
	} {
		out = append(out, defaultPlaybooks[t])
	}
	return out
}
