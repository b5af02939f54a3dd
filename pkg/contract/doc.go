// Package contract embeds the OpenAPI description of the portrait service,
// validates decoded responses against it and exposes the generation option
// vocabulary as a Catalog.
package contract
