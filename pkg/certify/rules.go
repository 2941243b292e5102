package certify

// Rule identifiers attached to violations so reviewers and tooling can
// key on them.
const (
	// RuleSamples: at least one sample payload must accompany a
	// submission.
	RuleSamples = "certification.samples"

	// RuleContract: the manifest failed to load or does not define the
	// two contract functions with compatible signatures.
	RuleContract = "manifest.contract"

	// RuleDescriptorSet: the declared descriptor set is empty,
	// redefines a name, or is otherwise inconsistent.
	RuleDescriptorSet = "descriptor.declared_set"

	// RuleNameGeneric: a declared descriptor name is too generic to be
	// meaningful across manifests.
	RuleNameGeneric = "descriptor.generic_name"

	// RuleBannedAPI: the source references an API or construct the
	// platform bans (output emission, module loading, I/O-looking
	// identifiers). Static screening is best effort; the runtime-level
	// denial is the authoritative control.
	RuleBannedAPI = "static.banned_api"

	// RuleRunFailed: a sample invocation raised an error.
	RuleRunFailed = "runtime.failed"

	// RuleRunEmpty: a sample invocation produced an empty result.
	RuleRunEmpty = "runtime.empty_result"

	// RuleRunUndeclared: a sample invocation emitted a field whose
	// descriptor is absent from the declared set.
	RuleRunUndeclared = "runtime.undeclared_descriptor"

	// RuleRunCapability: a sample invocation attempted a denied
	// capability.
	RuleRunCapability = "runtime.capability_violation"

	// RuleRunTimeout: a sample invocation exceeded its time budget.
	RuleRunTimeout = "runtime.timeout"
)
