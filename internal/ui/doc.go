// Package ui renders the file manager pages with html/template.
//
// The main page carries the fixed element IDs the script and tests rely on:
// fileList, searchInput, searchButton, uploadButton, fileInput,
// authorizeButton, signoutButton, content, loading, errorMessage and
// successMessage. Each file is one file-card element with a data-id
// attribute. Banners hide themselves five seconds after the page loads.
package ui
