/*
Package bisect provides the engine for bisecting an ordered catalog of Node.js versions.

A bisection is driven one invocation at a time. Every invocation loads the persisted [State] from a [StateStore],
optionally records a judgment against the currently active version using [Bisector.Mark] and, once at least one
good and one bad judgment exist, selects the next version to test.

The catalog returned by a [VersionCatalog] must be sorted ascending, i.e. the oldest version comes first.
Good versions are therefore expected to precede bad versions. The search window is always the stretch of
unjudged versions between the newest good version and the oldest bad version following it.

The selected version is activated through a [VersionActivator] if it is already installed, or downloaded,
installed and activated through a [VersionInstaller] otherwise. Versions which are already installed
are preferred over versions which would have to be downloaded.

A selection round yields a [Result], which either holds the [Candidate] that is now active and should be tested,
or the [Regression] which pinpoints the first bad version.

Typical usage:

	b := &bisect.Bisector{
		Store:     bisect.NewFileStore(".nvs_bisect.json"),
		Catalog:   catalog,
		Probe:     probe,
		Activator: activator,
		Installer: installer,
	}
	if err := b.Start(); err != nil {
		return err
	}
	// Switch to a good version
	if _, err := b.Mark(ctx, bisect.Good); err != nil {
		return err
	}
	// Switch to a bad version
	res, err := b.Mark(ctx, bisect.Bad)
*/
package bisect
