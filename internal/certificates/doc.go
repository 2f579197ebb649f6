// Package certificates locates the RSA certificates that wrap session keys.
//
// A certificate can come from three kinds of source, each a Search:
//
//   - StoreSearch: a named store at CurrentUser or LocalMachine scope
//   - FileSearch: a PKCS #12 container or PEM bundle on disk
//   - CarrierSearch: a container embedded in a managed assembly
//
// Stores are backed by github.com/99designs/keyring. CurrentUser stores use
// the operating system keychain when one is available and an encrypted
// file otherwise; LocalMachine stores are always encrypted files.
//
// # Overrides
//
// A NuGet.Encryption.config document maps package ids to sources:
//
//	<certificates>
//	  <package id="My.Package">
//	    <file source="signing.pfx" password="secret" />
//	  </package>
//	</certificates>
//
// FindOverride walks from the package directory up to the filesystem root
// and uses the first document with a matching package id.
package certificates
