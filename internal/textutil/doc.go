// Package textutil turns free-form clip titles into names that are safe to
// use as archive folders and file names.
//
// FolderName decomposes the title (NFKD), drops combining marks and replaces
// filesystem-unsafe characters, so "Café: Déjà Vu" becomes "Cafe- Deja Vu".
package textutil
