/*
Package ofx is a codec for Open Financial Exchange (OFX) documents.

ofx parses both OFXv1 (SGML tag soup with optional leaf closing tags) and
OFXv2 (XML) responses into validated, typed records, and builds outgoing
statement requests as wire bytes with the correct header prepended.
*/
package ofx
