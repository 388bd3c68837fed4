// Package generation wraps the language-generation service used by the
// interview: question sets from the Ikigai topics, answers to off-script
// questions, profession inference from résumé text and long-form synthesis
// (job suggestions, job-search conclusions, career plans).
//
// Calls go through a Runner that tries provider profiles in priority order,
// retries retryable failures with exponential backoff and puts failing
// profiles into a cooldown. Providers are OpenAI and Anthropic.
package generation
