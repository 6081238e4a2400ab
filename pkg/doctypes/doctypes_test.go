package doctypes

import (
	"testing"

	"github.com/google/uuid"

	"signeddoc/pkg/keyid"
	"signeddoc/pkg/uuidx"
)

func TestLookupKnownType(t *testing.T) {
	def, ok := Lookup(Proposal)
	if !ok {
		t.Fatal("proposal type must be registered")
	}
	if def.Name != "proposal" {
		t.Fatalf("unexpected name %q", def.Name)
	}
	if def.Template.Requirement != Required || !def.Template.AllowsType(ProposalTemplate) {
		t.Fatal("proposal must require a proposal form template")
	}
	if !def.CollaboratorUpdate || def.Collaborators != Optional {
		t.Fatal("proposal must allow collaborators")
	}
	if !def.AllowsRole(keyid.RoleProposer) || def.AllowsRole(keyid.RoleModerator) {
		t.Fatal("proposal signer roles wrong")
	}
}

func TestLookupUnknownType(t *testing.T) {
	if _, ok := Lookup(uuid.New()); ok {
		t.Fatal("random type must not resolve")
	}
}

func TestLookupName(t *testing.T) {
	def, ok := LookupName("contest ballot checkpoint")
	if !ok {
		t.Fatal("checkpoint type must be registered")
	}
	if def.Chain != Required {
		t.Fatal("checkpoints must be chained")
	}
	if def.Collaborators != Excluded {
		t.Fatal("chained documents must not allow collaborators")
	}
}

func TestParameterHierarchyShape(t *testing.T) {
	brand, _ := Lookup(BrandParameters)
	if brand.Parameters.Requirement != Excluded {
		t.Fatal("brand parameters is the hierarchy root")
	}
	campaign, _ := Lookup(CampaignParameters)
	if campaign.Parameters.Requirement != Required || !campaign.Parameters.AllowsType(BrandParameters) {
		t.Fatal("campaign parameters must point at a brand")
	}
	category, _ := Lookup(CategoryParameters)
	if !category.Parameters.AllowsType(CampaignParameters) || category.Parameters.AllowsType(BrandParameters) {
		t.Fatal("category parameters must point at a campaign only")
	}
}

func TestAllTypesAreV4(t *testing.T) {
	for _, def := range All() {
		if !uuidx.IsV4(def.Type) {
			t.Fatalf("%s: type %s is not a UUIDv4", def.Name, def.Type)
		}
		if len(def.SignerRoles) == 0 {
			t.Fatalf("%s: no signer roles", def.Name)
		}
	}
}
