// Package query normalizes saved item set queries.
//
// Queries are stored either structured (a JSON object) or, by older
// releases, as a URL-encoded string using the bracket syntax of HTML form
// submissions ("property[0][property]=dcterms:title&property[0][type]=ex").
// ParseLegacy decodes the string form, Clean drops empty values, and
// Resolve combines both into the Query the search backends consume.
package query
