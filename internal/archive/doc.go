// Package archive bundles a project document and every media file it
// references into a single tar file, and restores such bundles.
//
// Layout inside the archive:
//
//	<folder>/music/<file>   music of one clip
//	<folder>/image/<file>   image of one clip
//	countdown/<file>        the countdown video
//	save.bt                 the project document with archive-relative paths
//
// Folder names derive from clip titles (see textutil.FolderName) and are
// unique within one archive. Archives may be zstd compressed; Unpack detects
// compression from the leading magic bytes.
package archive
