package subscription

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/eventhawk-systems/eventhawk-stack/common/logging"
	"github.com/eventhawk-systems/eventhawk-stack/events/internal/authorization"
	"github.com/eventhawk-systems/eventhawk-stack/events/internal/identity"
	"github.com/eventhawk-systems/eventhawk-stack/events/internal/models"
	"github.com/eventhawk-systems/eventhawk-stack/events/internal/register"
)

// Validation messages. The first violated rule wins.
const (
	MsgInvalidEndpoint           = "Missing or invalid endpoint to push events towards"
	MsgSubjectRequired           = "A valid subject to the authenticated identity is required"
	MsgAlternativeSubjectInvalid = "A valid subject could not be resolved from the alternative subject filter"
	MsgConsumerRequired          = "Missing event consumer"
	MsgSourceInvalid             = "A valid app id is required in the source filter: {environment}/{org}/{app}"
	MsgCreatorRequired           = "Missing event creator"
	MsgResourceMismatch          = "Provided resource filter and source filter are not compatible"
	MsgResourceRequired          = "Resource filter is required and must be a valid urn"
	MsgSourceNotSupported        = "Source filter is not supported for subscriptions on this resource."
	MsgAlternativeNotSupported   = "AlternativeSubjectFilter is not supported for subscriptions on this resource."
)

// variant is one subscription creation strategy.
type variant interface {
	name() string
	// enrich fills derived fields before validation.
	enrich(ctx context.Context, sub *models.Subscription)
	// validate returns the first violated rule's message, or "".
	validate(caller identity.Identity, sub *models.Subscription) string
	// authorize reports whether the gate already permitted sub, so creation need not ask again.
	authorize(ctx context.Context, caller identity.Identity, sub *models.Subscription) (gated bool, err error)
}

// validateEndpoint applies the rule shared by both variants.
func validateEndpoint(endpoint string) string {
	u, err := url.Parse(endpoint)
	if endpoint == "" || err != nil || !u.IsAbs() || u.Host == "" {
		return MsgInvalidEndpoint
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return MsgInvalidEndpoint
	}
	return ""
}

// appVariant handles subscriptions on app events.
type appVariant struct {
	gate       authorization.Gate
	parties    register.PartyLookup
	appsDomain string
	logger     *logging.Logger
}

func (v *appVariant) name() string { return "app" }

// enrich resolves an alternative subject into a /party/ subject when no subject was given.
// Lookup failures leave the subject empty so validation rejects it; the personal number
// is never logged.
func (v *appVariant) enrich(ctx context.Context, sub *models.Subscription) {
	if sub.AlternativeSubjectFilter == "" || sub.SubjectFilter != "" {
		return
	}

	var orgNo, ssn string
	switch {
	case strings.HasPrefix(sub.AlternativeSubjectFilter, identity.PrefixOrganisation):
		orgNo = strings.TrimPrefix(sub.AlternativeSubjectFilter, identity.PrefixOrganisation)
	case strings.HasPrefix(sub.AlternativeSubjectFilter, identity.PrefixPerson):
		ssn = strings.TrimPrefix(sub.AlternativeSubjectFilter, identity.PrefixPerson)
	default:
		return
	}
	if orgNo == "" && ssn == "" {
		return
	}

	partyID, err := v.parties.PartyLookup(ctx, orgNo, ssn)
	if err != nil {
		v.logger.WarnContext(ctx, "party lookup for alternative subject failed",
			logging.Consumer(sub.Consumer), logging.Error(err))
		return
	}
	sub.SubjectFilter = fmt.Sprintf("%s%d", identity.PrefixParty, partyID)
}

func (v *appVariant) validate(caller identity.Identity, sub *models.Subscription) string {
	if sub.SubjectFilter == "" && !caller.IsOrg() {
		return MsgSubjectRequired
	}
	if sub.AlternativeSubjectFilter != "" && sub.SubjectFilter == "" {
		return MsgAlternativeSubjectInvalid
	}
	if sub.Consumer == "" {
		return MsgConsumerRequired
	}

	src, ok := models.ParseAppSourceFilter(sub.SourceFilter)
	if !ok || (v.appsDomain != "" && !src.OnDomain(v.appsDomain)) {
		return MsgSourceInvalid
	}
	if sub.CreatedBy == "" {
		return MsgCreatorRequired
	}

	// A wildcard filter spans several apps, so it is scoped by the source filter alone.
	if src.Wildcard {
		if sub.ResourceFilter != "" {
			return MsgResourceMismatch
		}
		return ""
	}

	derived := AppResource(src.Org, src.App)
	if sub.ResourceFilter != "" && sub.ResourceFilter != derived {
		return MsgResourceMismatch
	}
	sub.ResourceFilter = derived
	return ""
}

func (v *appVariant) authorize(ctx context.Context, caller identity.Identity, sub *models.Subscription) (bool, error) {
	denied := models.NewUnauthorizedError(fmt.Sprintf(msgNotAuthorize, sub.SubjectFilter))

	if sub.CreatedBy != sub.Consumer {
		return false, denied
	}

	switch {
	case strings.HasPrefix(sub.Consumer, identity.PrefixUser):
		if caller.PersonID != "" && sub.AlternativeSubjectFilter == identity.PrefixPerson+caller.PersonID {
			return false, nil
		}
		allowed, err := v.gate.AuthorizeConsumerForEventsSubscription(ctx, sub)
		if err != nil {
			return false, fmt.Errorf("authorize subscription: %w", err)
		}
		if allowed {
			return true, nil
		}
	case strings.HasPrefix(sub.Consumer, identity.PrefixOrg):
		if sub.SubjectFilter == "" {
			return false, nil
		}
	case strings.HasPrefix(sub.Consumer, identity.PrefixParty):
		if sub.SubjectFilter == sub.Consumer {
			return false, nil
		}
	}
	return false, denied
}

// AppResource returns the canonical resource URN of an app.
func AppResource(org, app string) string {
	return fmt.Sprintf("%s%s_%s", AppResourcePrefix, org, app)
}

// genericVariant handles subscriptions on generic resource events. Consumer and creator
// are always the caller and there is no subject enrichment.
type genericVariant struct{}

func (v *genericVariant) name() string { return "generic" }

func (v *genericVariant) enrich(context.Context, *models.Subscription) {}

func (v *genericVariant) validate(_ identity.Identity, sub *models.Subscription) string {
	if !strings.HasPrefix(strings.ToLower(sub.ResourceFilter), "urn:") || len(sub.ResourceFilter) <= len("urn:") {
		return MsgResourceRequired
	}
	if sub.SourceFilter != "" {
		return MsgSourceNotSupported
	}
	if sub.AlternativeSubjectFilter != "" {
		return MsgAlternativeNotSupported
	}
	return ""
}

func (v *genericVariant) authorize(context.Context, identity.Identity, *models.Subscription) (bool, error) {
	return false, nil
}
