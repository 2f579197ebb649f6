// Package configs reads and writes the documents pkgseal works with.
//
// # Encryption Configuration
//
// The encryption configuration ships next to encrypted package content and
// tells the decrypt tool which files to restore:
//
//	<configuration>
//	  <files>
//	    <file>
//	      <encrypted>9E10...</encrypted>
//	      <path>lib/net45/Library.dll</path>
//	      <type>ManifestResource</type>
//	      <original>5D41...</original>
//	    </file>
//	  </files>
//	  <metadata>
//	    <id>My.Package</id>
//	    <certificate>THUMBPRINT</certificate>
//	    <key>WRAPPED SESSION KEY</key>
//	  </metadata>
//	</configuration>
//
// Element names are fixed; packages produced by earlier tooling use them.
//
// # Build Manifest
//
// The build side is driven by a TOML manifest (pkgseal.toml):
//
//	[package]
//	id = "My.Package"
//	output = "obj/pkgseal"
//
//	[certificate]
//	file = "signing.pfx"
//	password = "secret"
//
//	[[files]]
//	source = "bin/Release/**/*.dll"
//	destination = "lib/net45"
//
// Sources are doublestar globs relative to the manifest.
//
// # Settings
//
// Stores holds the locations of the keyring-backed certificate stores.
// ResolveStores fills it from PKGSEAL_STORE_DIR and PKGSEAL_STORE_PASSWORD
// the first time a store is opened.
package configs
