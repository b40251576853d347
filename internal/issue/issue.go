// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"cmp"
	"slices"
	"strings"

	"github.com/charmbracelet/glamour"
	"golang.org/x/exp/maps"
)

// Id identifies a catalog entry.
type Id int

const (
	ArchiveUnreadableId Id = iota + 1
	ManifestInvalidId
	WrongTargetId
	AlreadyInstalledId
	NotInstalledId
	DeviceUnreachableId
	AdbNotFoundId
	CorruptManifestId
	UninstallIncompleteId
	OperationBusyId
	ConfigLoadFailedId
	PermissionDeniedId
)

type MarkdownMsg string

type HttpLink string

type Issue struct {
	id       Id          // ID used to lookup the issue
	name     string      // stable slug accepted by `modctl explain`
	mdMsg    MarkdownMsg // Markdown text that will be rendered
	docLinks []HttpLink
	extLinks []HttpLink // external links that might be useful for the user
}

func (i *Issue) Id() Id {
	return i.id
}

// Name is the slug used on the command line.
func (i *Issue) Name() string {
	return i.name
}

func (i *Issue) MarkdownMsg() MarkdownMsg {
	return i.mdMsg
}

func (i *Issue) DocLinks() []HttpLink {
	return slices.Clone(i.docLinks)
}

func (i *Issue) ExtLinks() []HttpLink {
	return slices.Clone(i.extLinks)
}

// Markdown returns the message followed by a "See also" list of links.
func (i *Issue) Markdown() string {
	var md strings.Builder
	md.WriteString(string(i.mdMsg))
	if len(i.docLinks) > 0 || len(i.extLinks) > 0 {
		md.WriteString("\n\n## See also:\n")
		for _, link := range slices.Concat(i.docLinks, i.extLinks) {
			md.WriteString("- <" + string(link) + ">\n")
		}
	}
	return md.String()
}

// Render returns the issue rendered for a terminal with the glamour style
// at stylePath (a built-in style name such as "dark" also works).
func (i *Issue) Render(stylePath string) (string, error) {
	return render(i.Markdown(), stylePath)
}

// RenderWidth is Render with word wrap at width columns. A width of zero
// or less keeps glamour's default wrap.
func (i *Issue) RenderWidth(stylePath string, width int) (string, error) {
	if width <= 0 {
		return i.Render(stylePath)
	}
	r, err := glamour.NewTermRenderer(glamour.WithStylePath(stylePath), glamour.WithWordWrap(width))
	if err != nil {
		return "", err
	}
	return r.Render(i.Markdown())
}

var (
	render = glamour.Render

	archiveUnreadableIssue = &Issue{
		id:   ArchiveUnreadableId,
		name: "archive-unreadable",
		mdMsg: `
# The mod archive could not be extracted!

A mod archive is a ZIP file (usually with a ` + "`.qmod`" + ` extension) holding a
` + "`mod.json`" + ` manifest and the files it declares.

## Common causes:
- The file is not a ZIP archive or was only partially downloaded
- An entry would be written outside the extraction directory
- The archive is larger than the extraction limit

## Things you can try:
- Download the mod again
- Check the archive with:
~~~
$ unzip -l MyMod.qmod
~~~`,
	}

	manifestInvalidIssue = &Issue{
		id:   ManifestInvalidId,
		name: "manifest-invalid",
		mdMsg: `
# The mod manifest is missing or invalid!

Every archive needs a ` + "`mod.json`" + ` at its root (or inside a single top-level
directory) that declares the mod and lists its files.

## Example mod.json:
~~~json
{
  "id": "song-loader",
  "name": "SongLoader",
  "version": "1.2.0",
  "gameId": "com.beatgames.beatsaber",
  "gameVersion": "1.28.0",
  "modFiles": ["libsongloader.so"],
  "libraryFiles": ["libbeatsaber-hook.so"]
}
~~~

## Things you can try:
- Make sure every file in modFiles and libraryFiles is inside the archive
- Use relative paths without ".." segments
- Validate and rebuild the archive:
~~~
$ modctl pack ./my-mod
~~~`,
	}

	wrongTargetIssue = &Issue{
		id:   WrongTargetId,
		name: "wrong-target",
		mdMsg: `
# This mod is built for a different application!

The manifest's ` + "`gameId`" + ` must equal the target application id modctl is
configured for. Nothing was copied to the device.

## Things you can try:
- Get the build of the mod for your application
- Check the configured target:
~~~
$ modctl config show
~~~

- Point modctl at another application:
~~~
$ MODCTL_TARGET_APP=com.example.app modctl install MyMod.qmod
~~~`,
	}

	alreadyInstalledIssue = &Issue{
		id:   AlreadyInstalledId,
		name: "already-installed",
		mdMsg: `
# The mod is already installed!

A mod id can only be installed once. Upgrades are not applied in place.

## Things you can try:
- Remove the installed version, then install the new one:
~~~
$ modctl uninstall song-loader
$ modctl install SongLoader-1.3.0.qmod
~~~`,
	}

	notInstalledIssue = &Issue{
		id:   NotInstalledId,
		name: "not-installed",
		mdMsg: `
# The mod is not installed!

No persisted manifest with that id was found on the device.

## Things you can try:
- List the installed mods and their ids:
~~~
$ modctl list
~~~`,
	}

	deviceUnreachableIssue = &Issue{
		id:   DeviceUnreachableId,
		name: "device-unreachable",
		mdMsg: `
# The device could not be reached!

modctl talks to the device through adb, SSH or a local directory, depending
on ` + "`device.transport`" + `.

## Things you can try:
- For adb, check that the device is connected and authorized:
~~~
$ adb devices
~~~

- For SSH, check host, port and credentials in your config
- Run the failing command with ` + "`--verbose`" + ` to see every device command`,
		extLinks: []HttpLink{"https://developer.android.com/tools/adb"},
	}

	adbNotFoundIssue = &Issue{
		id:   AdbNotFoundId,
		name: "adb-not-found",
		mdMsg: `
# adb was not found!

The adb transport needs the Android platform tools.

## Things you can try:
- Install the platform tools and make sure ` + "`adb`" + ` is in your PATH
- Point modctl at the binary:
~~~cue
device: adb: binary: "/opt/platform-tools/adb"
~~~`,
		extLinks: []HttpLink{"https://developer.android.com/tools/releases/platform-tools"},
	}

	corruptManifestIssue = &Issue{
		id:   CorruptManifestId,
		name: "corrupt-manifest",
		mdMsg: `
# A persisted manifest could not be read!

One of the manifests in the installed-mods directory is not valid. It was
skipped; every other mod was loaded.

## Things you can try:
- Inspect the file reported in the warning
- Remove it by hand if the mod is gone, or reinstall the mod`,
	}

	uninstallIncompleteIssue = &Issue{
		id:   UninstallIncompleteId,
		name: "uninstall-incomplete",
		mdMsg: `
# The uninstall did not complete cleanly!

The mod is no longer registered, but some of its files could not be deleted.
Every step was attempted; the failures are listed above.

## Things you can try:
- Check that the device storage is writable
- Delete the remaining files by hand:
~~~
$ modctl device exec "rm -f sdcard/Android/data/<app-id>/files/mods/<file>"
~~~`,
	}

	operationBusyIssue = &Issue{
		id:   OperationBusyId,
		name: "operation-busy",
		mdMsg: `
# Another mod operation is in progress!

Installs and uninstalls against one device run one at a time.

## Things you can try:
- Wait for the other operation to finish and try again
- Drop archives into a watched directory to queue them:
~~~
$ modctl watch ~/Downloads/mods
~~~`,
	}

	configLoadFailedIssue = &Issue{
		id:   ConfigLoadFailedId,
		name: "config-load-failed",
		mdMsg: `
# Failed to load configuration!

There was an error loading your modctl configuration file.

## Things you can try:
- Check the syntax of your config file:
~~~
$ modctl config path
~~~

- Write a fresh default config:
~~~
$ modctl config init
~~~

- Remove the config file to use the defaults`,
	}

	permissionDeniedIssue = &Issue{
		id:   PermissionDeniedId,
		name: "permission-denied",
		mdMsg: `
# Permission denied!

You don't have permission to perform this operation.

## Common causes:
- The scratch directory or lock file is not writable
- The device storage is mounted read-only
- USB debugging was not authorized on the device

## Things you can try:
- Check the permissions of the scratch directory in your config
- Accept the debugging prompt on the device and retry`,
	}

	issues = map[Id]*Issue{
		archiveUnreadableIssue.Id():   archiveUnreadableIssue,
		manifestInvalidIssue.Id():     manifestInvalidIssue,
		wrongTargetIssue.Id():         wrongTargetIssue,
		alreadyInstalledIssue.Id():    alreadyInstalledIssue,
		notInstalledIssue.Id():        notInstalledIssue,
		deviceUnreachableIssue.Id():   deviceUnreachableIssue,
		adbNotFoundIssue.Id():         adbNotFoundIssue,
		corruptManifestIssue.Id():     corruptManifestIssue,
		uninstallIncompleteIssue.Id(): uninstallIncompleteIssue,
		operationBusyIssue.Id():       operationBusyIssue,
		configLoadFailedIssue.Id():    configLoadFailedIssue,
		permissionDeniedIssue.Id():    permissionDeniedIssue,
	}
)

// Values returns every issue ordered by id.
func Values() []*Issue {
	all := maps.Values(issues)
	slices.SortFunc(all, func(a, b *Issue) int { return cmp.Compare(a.id, b.id) })
	return all
}

// Get returns the issue for id, or nil.
func Get(id Id) *Issue {
	return issues[id]
}

// Lookup returns the issue whose name is name.
func Lookup(name string) (*Issue, bool) {
	for _, is := range issues {
		if is.name == name {
			return is, true
		}
	}
	return nil, false
}
