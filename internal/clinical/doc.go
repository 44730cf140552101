// Package clinical assembles the text context and inline image payloads that
// accompany a prompt-generation call: patient summary, budgeted EHR excerpts
// and base64-encoded CT images.
package clinical
