// SPDX-License-Identifier: MPL-2.0

// Package provision builds the container images phylorun runs engines in.
//
// The embedded catalog.yaml lists one entry per engine image: repository,
// release version, archive URL, apt packages, setup steps and the binary
// paths inside the image. Catalog.Image renders an entry into an Image with
// a validated Dockerfile and its digest:
//
//	catalog, err := provision.LoadCatalog()
//	img, err := catalog.Image(provision.KeyBeast2)
//	err = provision.NewImageProvisioner(engine, logger).EnsureImage(ctx, img)
//
// Images are built only when absent. An existing image whose template digest
// label differs from the current one is kept and reported as stale.
package provision
