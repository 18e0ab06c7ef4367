// Package providers groups the built-in sync strategies: shopify for
// commerce orders over the Admin GraphQL API and googleads for ads
// performance over the search API. The devkit subpackage holds the scripted
// transport and payload fixtures the strategy tests run against.
package providers
