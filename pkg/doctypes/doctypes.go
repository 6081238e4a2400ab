// Package doctypes is the document type registry: the catalog of known
// document types and the per-type validation profile (required metadata
// fields, payload content type, allowed referenced types, signer roles).
package doctypes

import (
	"github.com/google/uuid"

	"signeddoc/pkg/keyid"
	"signeddoc/pkg/metadata"
	"signeddoc/pkg/uuidx"
)

// Requirement states whether a metadata field must, may or must not appear.
type Requirement int

const (
	Excluded Requirement = iota
	Optional
	Required
)

func (r Requirement) String() string {
	switch r {
	case Required:
		return "required"
	case Optional:
		return "optional"
	default:
		return "excluded"
	}
}

// RefRule constrains one link field (ref, template, reply, parameters).
type RefRule struct {
	Requirement Requirement
	// Types lists the allowed document types of the referenced document.
	Types []uuid.UUID
	// Multiple permits more than one reference in the field.
	Multiple bool
}

// TypeDef is the validation profile of one document type.
type TypeDef struct {
	Name string
	Type uuid.UUID

	ContentType string
	// ContentEncoding is the required payload encoding, empty for none.
	ContentEncoding string

	Ref        RefRule
	Template   RefRule
	Reply      RefRule
	Parameters RefRule

	Section       Requirement
	Collaborators Requirement
	Revocations   Requirement
	Chain         Requirement

	// SignerRoles lists every role allowed to sign this type.
	SignerRoles []keyid.Role
	// CollaboratorUpdate permits collaborators from the latest accepted
	// version to publish new versions.
	CollaboratorUpdate bool
}

// AllowsRole reports whether a signer role may sign this type.
func (d TypeDef) AllowsRole(r keyid.Role) bool {
	for _, allowed := range d.SignerRoles {
		if allowed == r {
			return true
		}
	}
	return false
}

// AllowsRefType reports whether rule permits a referenced document type.
func (r RefRule) AllowsType(t uuid.UUID) bool {
	for _, allowed := range r.Types {
		if allowed == t {
			return true
		}
	}
	return false
}

// Document type identifiers.
var (
	BrandParameters            = uuidx.MustV4("3e4808cc-c86e-467b-9702-d60baa9d1fca")
	BrandParametersTemplate    = uuidx.MustV4("fd3c1735-80b1-4eea-8d63-5f436d97ea31")
	CampaignParameters         = uuidx.MustV4("0110ea96-a555-47ce-8408-36efe6ed6f7c")
	CampaignParametersTemplate = uuidx.MustV4("7e8f5fa2-44ce-49c8-bfd5-02af42c179a3")
	CategoryParameters         = uuidx.MustV4("48c20109-362a-4d32-9bba-e0a9cf8b45be")
	CategoryParametersTemplate = uuidx.MustV4("65b1e8b0-51f1-46a5-9970-72cdf26884be")
	ContestParameters          = uuidx.MustV4("788ff4c6-d65a-451f-bb33-575fe056b411")
	ContestParametersTemplate  = uuidx.MustV4("08a1e16d-354d-4f64-8812-4692924b113b")
	Proposal                   = uuidx.MustV4("7808d2ba-d511-40af-84e8-c0d1625fdfdc")
	ProposalTemplate           = uuidx.MustV4("0ce8ab38-9258-4fbc-a62e-7faa6e58318f")
	ProposalComment            = uuidx.MustV4("b679ded3-0e7c-41ba-89f8-da62a17898ea")
	ProposalCommentTemplate    = uuidx.MustV4("0b8424d4-ebfd-46e3-9577-1775a69d290c")
	ProposalSubmissionAction   = uuidx.MustV4("5e60e623-ad02-4a1b-a1ac-406db978ee48")
	ProposalModerationAction   = uuidx.MustV4("a552451a-8e5b-409d-83a0-21eac26bbf8c")
	CommentModerationAction    = uuidx.MustV4("84a4b502-3b7e-47fd-84e4-6fee08794bd7")
	ContestDelegation          = uuidx.MustV4("764f17fb-cc50-4979-b14a-b213dbac5994")
	RepProfile                 = uuidx.MustV4("0f2c86a2-ffda-40b0-ad38-23709e1c10b3")
	RepProfileTemplate         = uuidx.MustV4("564cbea3-44d3-4303-b75a-d9fdda7e5a80")
	RepNomination              = uuidx.MustV4("bf9abd97-5d1f-4429-8e80-740fea371a9c")
	RepNominationTemplate      = uuidx.MustV4("431561a5-9c2b-4de1-8e0d-78eb4887e35d")
	PresentationTemplate       = uuidx.MustV4("cb99b9bd-681a-49d8-9836-89107c02e8ef")
	ContestBallot              = uuidx.MustV4("2b9d2b22-8a87-4b7c-b984-452ca37a2a8c")
	ContestBallotCheckpoint    = uuidx.MustV4("9dfa2b19-ed55-4b75-8c45-3f1a3dbd1fee")
)

// Parameter documents any scoped document may live under.
var anyParameterScope = []uuid.UUID{BrandParameters, CampaignParameters, CategoryParameters}

var adminRoles = []keyid.Role{
	keyid.RoleRootAdmin, keyid.RoleBrandAdmin, keyid.RoleCampaignAdmin, keyid.RoleCategoryAdmin,
}

// Lookup returns the definition of a document type.
func Lookup(t uuid.UUID) (TypeDef, bool) {
	def, ok := registry[t]
	return def, ok
}

// LookupName returns the definition of a document type by its name.
func LookupName(name string) (TypeDef, bool) {
	for _, def := range registry {
		if def.Name == name {
			return def, true
		}
	}
	return TypeDef{}, false
}

// All returns every registered type definition.
func All() []TypeDef {
	out := make([]TypeDef, 0, len(registry))
	for _, def := range registry {
		out = append(out, def)
	}
	return out
}

var registry = map[uuid.UUID]TypeDef{}

func register(def TypeDef) {
	if _, dup := registry[def.Type]; dup {
		panic("duplicate document type " + def.Type.String())
	}
	registry[def.Type] = def
}

func init() {
	// Parameter hierarchy. Brand is the root: no parameters of its own.
	register(TypeDef{
		Name:            "brand parameters",
		Type:            BrandParameters,
		ContentType:     metadata.ContentTypeJSON,
		ContentEncoding: metadata.EncodingBrotli,
		Template:        RefRule{Requirement: Optional, Types: []uuid.UUID{BrandParametersTemplate}},
		Revocations:     Optional,
		SignerRoles:     []keyid.Role{keyid.RoleRootAdmin, keyid.RoleBrandAdmin},
	})
	register(TypeDef{
		Name:            "campaign parameters",
		Type:            CampaignParameters,
		ContentType:     metadata.ContentTypeJSON,
		ContentEncoding: metadata.EncodingBrotli,
		Template:        RefRule{Requirement: Optional, Types: []uuid.UUID{CampaignParametersTemplate}},
		Parameters:      RefRule{Requirement: Required, Types: []uuid.UUID{BrandParameters}},
		Revocations:     Optional,
		SignerRoles:     []keyid.Role{keyid.RoleRootAdmin, keyid.RoleBrandAdmin},
	})
	register(TypeDef{
		Name:            "category parameters",
		Type:            CategoryParameters,
		ContentType:     metadata.ContentTypeJSON,
		ContentEncoding: metadata.EncodingBrotli,
		Template:        RefRule{Requirement: Optional, Types: []uuid.UUID{CategoryParametersTemplate}},
		Parameters:      RefRule{Requirement: Required, Types: []uuid.UUID{CampaignParameters}},
		Revocations:     Optional,
		SignerRoles:     []keyid.Role{keyid.RoleRootAdmin, keyid.RoleBrandAdmin, keyid.RoleCampaignAdmin},
	})
	register(TypeDef{
		Name:            "contest parameters",
		Type:            ContestParameters,
		ContentType:     metadata.ContentTypeJSON,
		ContentEncoding: metadata.EncodingBrotli,
		Template:        RefRule{Requirement: Optional, Types: []uuid.UUID{ContestParametersTemplate}},
		Parameters:      RefRule{Requirement: Required, Types: anyParameterScope},
		Revocations:     Optional,
		SignerRoles:     adminRoles,
	})

	// Form templates. Payload is a JSON Schema.
	for _, tpl := range []struct {
		name string
		t    uuid.UUID
	}{
		{"brand parameters form template", BrandParametersTemplate},
		{"campaign parameters form template", CampaignParametersTemplate},
		{"category parameters form template", CategoryParametersTemplate},
		{"contest parameters form template", ContestParametersTemplate},
		{"proposal form template", ProposalTemplate},
		{"proposal comment form template", ProposalCommentTemplate},
		{"rep profile form template", RepProfileTemplate},
		{"rep nomination form template", RepNominationTemplate},
		{"presentation template", PresentationTemplate},
	} {
		def := TypeDef{
			Name:            tpl.name,
			Type:            tpl.t,
			ContentType:     metadata.ContentTypeJSON,
			ContentEncoding: metadata.EncodingBrotli,
			Revocations:     Optional,
			SignerRoles:     adminRoles,
		}
		if tpl.t != BrandParametersTemplate {
			def.Parameters = RefRule{Requirement: Optional, Types: anyParameterScope}
		}
		register(def)
	}

	register(TypeDef{
		Name:               "proposal",
		Type:               Proposal,
		ContentType:        metadata.ContentTypeJSON,
		ContentEncoding:    metadata.EncodingBrotli,
		Template:           RefRule{Requirement: Required, Types: []uuid.UUID{ProposalTemplate}},
		Parameters:         RefRule{Requirement: Required, Types: anyParameterScope},
		Collaborators:      Optional,
		Revocations:        Optional,
		SignerRoles:        []keyid.Role{keyid.RoleProposer},
		CollaboratorUpdate: true,
	})
	register(TypeDef{
		Name:            "proposal comment",
		Type:            ProposalComment,
		ContentType:     metadata.ContentTypeJSON,
		ContentEncoding: metadata.EncodingBrotli,
		Ref:             RefRule{Requirement: Required, Types: []uuid.UUID{Proposal}},
		Template:        RefRule{Requirement: Required, Types: []uuid.UUID{ProposalCommentTemplate}},
		Reply:           RefRule{Requirement: Optional, Types: []uuid.UUID{ProposalComment}},
		Parameters:      RefRule{Requirement: Required, Types: anyParameterScope},
		Section:         Optional,
		Revocations:     Optional,
		SignerRoles:     []keyid.Role{keyid.RoleRegistered, keyid.RoleRepresentative, keyid.RoleProposer},
	})
	register(TypeDef{
		Name:            "proposal submission action",
		Type:            ProposalSubmissionAction,
		ContentType:     metadata.ContentTypeJSON,
		ContentEncoding: metadata.EncodingBrotli,
		Ref:             RefRule{Requirement: Required, Types: []uuid.UUID{Proposal}},
		Parameters:      RefRule{Requirement: Required, Types: anyParameterScope},
		SignerRoles:     []keyid.Role{keyid.RoleProposer},
	})
	register(TypeDef{
		Name:            "proposal moderation action",
		Type:            ProposalModerationAction,
		ContentType:     metadata.ContentTypeJSON,
		ContentEncoding: metadata.EncodingBrotli,
		Ref:             RefRule{Requirement: Required, Types: []uuid.UUID{Proposal}},
		SignerRoles:     []keyid.Role{keyid.RoleModerator},
	})
	register(TypeDef{
		Name:            "comment moderation action",
		Type:            CommentModerationAction,
		ContentType:     metadata.ContentTypeJSON,
		ContentEncoding: metadata.EncodingBrotli,
		Ref:             RefRule{Requirement: Required, Types: []uuid.UUID{ProposalComment}},
		SignerRoles:     []keyid.Role{keyid.RoleModerator},
	})

	// Representatives.
	register(TypeDef{
		Name:            "rep profile",
		Type:            RepProfile,
		ContentType:     metadata.ContentTypeJSON,
		ContentEncoding: metadata.EncodingBrotli,
		Template:        RefRule{Requirement: Required, Types: []uuid.UUID{RepProfileTemplate}},
		Revocations:     Optional,
		SignerRoles:     []keyid.Role{keyid.RoleRepresentative},
	})
	register(TypeDef{
		Name:            "rep nomination",
		Type:            RepNomination,
		ContentType:     metadata.ContentTypeJSON,
		ContentEncoding: metadata.EncodingBrotli,
		Ref:             RefRule{Requirement: Required, Types: []uuid.UUID{RepProfile}},
		Template:        RefRule{Requirement: Required, Types: []uuid.UUID{RepNominationTemplate}},
		Parameters:      RefRule{Requirement: Required, Types: []uuid.UUID{ContestParameters}},
		Revocations:     Optional,
		SignerRoles:     []keyid.Role{keyid.RoleRepresentative},
	})
	register(TypeDef{
		Name:            "contest delegation",
		Type:            ContestDelegation,
		ContentType:     metadata.ContentTypeJSON,
		ContentEncoding: metadata.EncodingBrotli,
		Ref:             RefRule{Requirement: Required, Types: []uuid.UUID{RepNomination}},
		Parameters:      RefRule{Requirement: Required, Types: []uuid.UUID{ContestParameters}},
		SignerRoles:     []keyid.Role{keyid.RoleRegistered, keyid.RoleRepresentative},
	})

	// Ballots and checkpoints. Checkpoints are chained, never collaborative.
	register(TypeDef{
		Name:        "contest ballot",
		Type:        ContestBallot,
		ContentType: metadata.ContentTypeCBOR,
		Parameters:  RefRule{Requirement: Required, Types: []uuid.UUID{ContestParameters}},
		SignerRoles: []keyid.Role{keyid.RoleRegistered, keyid.RoleRepresentative},
	})
	register(TypeDef{
		Name:        "contest ballot checkpoint",
		Type:        ContestBallotCheckpoint,
		ContentType: metadata.ContentTypeCBOR,
		Parameters:  RefRule{Requirement: Required, Types: []uuid.UUID{ContestParameters}},
		Chain:       Required,
		SignerRoles: []keyid.Role{keyid.RoleRootAdmin},
	})
}
