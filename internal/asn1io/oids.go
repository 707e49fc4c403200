// Copyright lowRISC contributors (OpenTitan project).
// Licensed under the Apache License, Version 2.0, see LICENSE for details.
// SPDX-License-Identifier: Apache-2.0

package asn1io

// Content-type and attribute OIDs used by the CMS envelope engine,
// signer and sessions. Values are the dotted-integer decoding of the
// DER arcs in cryptlib's misc/asn1_ext.h.
var (
	OIDCMSData            = OID{1, 2, 840, 113549, 1, 7, 1}
	OIDCMSSignedData      = OID{1, 2, 840, 113549, 1, 7, 2}
	OIDCMSEnvelopedData   = OID{1, 2, 840, 113549, 1, 7, 3}
	OIDCMSDigestedData    = OID{1, 2, 840, 113549, 1, 7, 5}
	OIDCMSEncryptedData   = OID{1, 2, 840, 113549, 1, 7, 6}
	OIDCMSAuthData        = OID{1, 2, 840, 113549, 1, 9, 16, 1, 2}
	OIDCMSTSToken         = OID{1, 2, 840, 113549, 1, 9, 16, 1, 4}
	OIDCMSCompressedData  = OID{1, 2, 840, 113549, 1, 9, 16, 1, 9}
	OIDCMSContentType     = OID{1, 2, 840, 113549, 1, 9, 3}
	OIDCMSMessageDigest   = OID{1, 2, 840, 113549, 1, 9, 4}
	OIDCMSSigningTime     = OID{1, 2, 840, 113549, 1, 9, 5}
	OIDCMSSMIMECapability = OID{1, 2, 840, 113549, 1, 9, 15}
	OIDCMSNonce           = OID{1, 2, 840, 113549, 1, 9, 25, 3}
	OIDESSCertID          = OID{1, 2, 840, 113549, 1, 9, 16, 2, 12}

	OIDCryptlibContentType = OID{1, 3, 6, 1, 4, 1, 3029, 4, 1}
	OIDCryptlibRTCSRequest = OID{1, 3, 6, 1, 4, 1, 3029, 4, 1, 4}
	OIDCryptlibRTCSResp    = OID{1, 3, 6, 1, 4, 1, 3029, 4, 1, 5}
	OIDCryptlibRTCSRespExt = OID{1, 3, 6, 1, 4, 1, 3029, 4, 1, 6}

	OIDTSPTimestampToken = OID{1, 2, 840, 113549, 1, 9, 16, 1, 4}
	// OIDTSPPolicy is the cryptlib TSA policy used in the worked example
	// of spec.md section 8 scenario 3.
	OIDTSPPolicy = OID{1, 3, 6, 1, 4, 1, 3029, 54, 1, 1}

	OIDSHA1WithRSA   = OID{1, 2, 840, 113549, 1, 1, 5}
	OIDSHA256WithRSA = OID{1, 2, 840, 113549, 1, 1, 11}
	OIDRSAEncryption = OID{1, 2, 840, 113549, 1, 1, 1}
	OIDDSA           = OID{1, 2, 840, 10040, 4, 1}
	OIDDSAWithSHA1   = OID{1, 2, 840, 10040, 4, 3}
	OIDDiffieHellman = OID{1, 2, 840, 10046, 2, 1}

	OIDSubjectKeyIdentifier   = OID{2, 5, 29, 14}
	OIDKeyUsage               = OID{2, 5, 29, 15}
	OIDSubjectAltName         = OID{2, 5, 29, 17}
	OIDBasicConstraints       = OID{2, 5, 29, 19}
	OIDCRLReason              = OID{2, 5, 29, 21}
	OIDInvalidityDate         = OID{2, 5, 29, 24}
	OIDAuthorityKeyIdentifier = OID{2, 5, 29, 35}
	OIDExtKeyUsage            = OID{2, 5, 29, 37}

	OIDPKCS9ExtensionRequest = OID{1, 2, 840, 113549, 1, 9, 14}

	// Extended key usage purposes, RFC 5280 section 4.2.1.12.
	OIDEKUServerAuth      = OID{1, 3, 6, 1, 5, 5, 7, 3, 1}
	OIDEKUClientAuth      = OID{1, 3, 6, 1, 5, 5, 7, 3, 2}
	OIDEKUCodeSigning     = OID{1, 3, 6, 1, 5, 5, 7, 3, 3}
	OIDEKUEmailProtection = OID{1, 3, 6, 1, 5, 5, 7, 3, 4}
	OIDEKUTimeStamping    = OID{1, 3, 6, 1, 5, 5, 7, 3, 8}
	OIDEKUOCSPSigning     = OID{1, 3, 6, 1, 5, 5, 7, 3, 9}

	OIDSHA1   = OID{1, 3, 14, 3, 2, 26}
	OIDSHA256 = OID{2, 16, 840, 1, 101, 3, 4, 2, 1}

	// CMS EnvelopedData / RecipientInfo algorithm identifiers.
	OIDAES128CBC  = OID{2, 16, 840, 1, 101, 3, 4, 1, 2}
	OIDAES256CBC  = OID{2, 16, 840, 1, 101, 3, 4, 1, 42}
	OIDPBKDF2     = OID{1, 2, 840, 113549, 1, 5, 12}
	OIDPWRIKEK    = OID{1, 2, 840, 113549, 1, 9, 16, 3, 9}
	OIDHMACSHA256 = OID{1, 2, 840, 113549, 2, 9}
)
