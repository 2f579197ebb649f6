// Package packaging stages the encrypted content of a package.
//
// A Session generates one session key, wraps it with the package
// certificate and encrypts every file under it. Managed assemblies are
// embedded in a freshly built carrier image so the package still contains
// a loadable assembly at the original path; all other files are stored as
// raw ciphertext. The session accumulates the records that make up the
// encryption configuration shipped alongside the staged files.
package packaging
