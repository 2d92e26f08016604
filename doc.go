// Package packwire is a configurable binary codec. It turns typed values
// into a compact byte stream that carries no schema and back again.
//
// Producer and consumer agree on a Config out of band: byte order, whether
// optional values carry a presence byte, the width of container length
// prefixes and an optional size limit. Nothing about the Config is written
// to the wire.
//
// Values can be encoded three ways, all producing the same bytes:
//
//   - by hand, calling Encoder.Write* and Decoder.Read* directly;
//   - with composable Codec values such as SliceOf(String) or MapOf(U8, F64);
//   - with Marshal and Unmarshal, which derive the layout from Go types and
//     `pack:"..."` struct tags.
//
// Structs are positional records. Consecutive fields tagged with `bits=N`
// share bytes, least significant bit first, and the run is padded to a
// byte boundary before the next plain field. A struct holding a blank
// Union field is a tagged union; see Union and Discriminants.
package packwire
