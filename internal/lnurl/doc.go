// Package lnurl resolves LNURL-pay links and Lightning Addresses into
// BOLT11 invoices.
//
// Two input forms are accepted:
//   - bech32 "lnurl1..." strings encoding an https URL
//   - Lightning Addresses ("name@domain"), mapped to
//     https://domain/.well-known/lnurlp/name
//
// Resolution is two HTTP round trips: the pay request metadata, then the
// callback with the amount (and optional comment) which returns the invoice.
package lnurl
