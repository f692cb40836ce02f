// Package exporttest provides a full bundle document for tests of the export
// direction.
package exporttest

import (
	"strings"

	"github.com/beevik/etree"
)

// IDs of the entities in FullBundle
const (
	RootFolderID    = "0000000000000000ffffffffffffec76"
	APIFolderID     = "f1000000000000000000000000000001"
	LibFolderID     = "f1000000000000000000000000000002"
	BillingFolderID = "f1000000000000000000000000000003"
	OtherFolderID   = "f1000000000000000000000000000004"

	ChargePolicyID = "p1000000000000000000000000000001"
	AuthPolicyID   = "p1000000000000000000000000000002"
	AuditPolicyID  = "p1000000000000000000000000000003"
	UnusedPolicyID = "p1000000000000000000000000000004"

	ChargeGUID = "11111111-1111-4111-8111-111111111111"
	AuthGUID   = "22222222-2222-4222-8222-222222222222"
	AuditGUID  = "33333333-3333-4333-8333-333333333333"
	UnusedGUID = "44444444-4444-4444-8444-444444444444"

	AuditEncassID   = "e1000000000000000000000000000001"
	AuditEncassGUID = "55555555-5555-4555-8555-555555555555"

	OrdersServiceID = "s1000000000000000000000000000001"

	HostnamePropertyID = "c1000000000000000000000000000001"
	UnusedPropertyID   = "c1000000000000000000000000000002"

	HTTPSPortID = "l1000000000000000000000000000001"
	AdminPortID = "l1000000000000000000000000000002"

	PartnerCertID = "t1000000000000000000000000000001"

	SSLKeyID    = "00000000000000000000000000000002:ssl"
	SignerKeyID = "00000000000000000000000000000002:signer"

	JDBCConnectionID = "j1000000000000000000000000000001"
)

// Certificate is the encoded certificate used throughout FullBundle
const Certificate = "MIIBfTCCASegAwIBAgIJAPH69zKKw4ixMA0GCSqGSIb3DQEBBQUAMA8xDTALBgNVBAMTBHRlc3QwHhcNMTgxMDEzMDMyODI1WhcNMzgxMDA4MDMyODI1WjAPMQ0wCwYDVQQDEwR0ZXN0MFwwDQYJKoZIhvcNAQEBBQADSwAwSAJBAIS+Vr8zPOBmSclkUtW/z0UXaMjhg7dix6IUZs+UoSiw/2GXfU2vc3renVAbn3AZaJEqnxgrcX4nldqt0WBIP4sCAwEAAaNmMGQwDgYDVR0PAQH/BAQDAgXgMBIGA1UdJQEB/wQIMAYGBFUdJQAwHQYDVR0OBBYEFN/aeDDEAB6MTxZhMhf/eJKnmaE5MB8GA1UdIwQYMBaAFN/aeDDEAB6MTxZhMhf/eJKnmaE5MA0GCSqGSIb3DQEBBQUAA0EAdolvh7bMX5ZMkM/yntJlBdzS8ukM/ULh8I11wKd6dDltyMuk9rOP0iEk1nsSFuFL0uQ4kIe12KyDwr8ns7VKvQ=="

// FullBundle is a gateway export with four folders, four policies, one
// encapsulated assertion, one service, two cluster properties, two listen
// ports, a trusted certificate, two private keys and a JDBC connection.
//
// Dependencies: the orders service includes charge and uses the hostname
// property and the JDBC connection, which trusts partner. charge includes
// auth and uses the Audit encass backed by audit. auth uses the https listen
// port, which uses the ssl key. Everything else is unreferenced.
var FullBundle = `<?xml version="1.0" encoding="UTF-8"?>
<l7:Bundle xmlns:l7="http://ns.l7tech.com/2010/04/gateway-management">
  <l7:References>
    <l7:Item>
      <l7:Name>Root Node</l7:Name>
      <l7:Id>` + RootFolderID + `</l7:Id>
      <l7:Type>FOLDER</l7:Type>
      <l7:Resource>
        <l7:Folder id="` + RootFolderID + `"><l7:Name>Root Node</l7:Name></l7:Folder>
      </l7:Resource>
    </l7:Item>
    <l7:Item>
      <l7:Name>api</l7:Name>
      <l7:Id>` + APIFolderID + `</l7:Id>
      <l7:Type>FOLDER</l7:Type>
      <l7:Resource>
        <l7:Folder folderId="` + RootFolderID + `" id="` + APIFolderID + `"><l7:Name>api</l7:Name></l7:Folder>
      </l7:Resource>
    </l7:Item>
    <l7:Item>
      <l7:Name>lib</l7:Name>
      <l7:Id>` + LibFolderID + `</l7:Id>
      <l7:Type>FOLDER</l7:Type>
      <l7:Resource>
        <l7:Folder folderId="` + RootFolderID + `" id="` + LibFolderID + `"><l7:Name>lib</l7:Name></l7:Folder>
      </l7:Resource>
    </l7:Item>
    <l7:Item>
      <l7:Name>billing</l7:Name>
      <l7:Id>` + BillingFolderID + `</l7:Id>
      <l7:Type>FOLDER</l7:Type>
      <l7:Resource>
        <l7:Folder folderId="` + APIFolderID + `" id="` + BillingFolderID + `"><l7:Name>billing</l7:Name></l7:Folder>
      </l7:Resource>
    </l7:Item>
    <l7:Item>
      <l7:Name>other</l7:Name>
      <l7:Id>` + OtherFolderID + `</l7:Id>
      <l7:Type>FOLDER</l7:Type>
      <l7:Resource>
        <l7:Folder folderId="` + RootFolderID + `" id="` + OtherFolderID + `"><l7:Name>other</l7:Name></l7:Folder>
      </l7:Resource>
    </l7:Item>
    <l7:Item>
      <l7:Name>https</l7:Name>
      <l7:Id>` + HTTPSPortID + `</l7:Id>
      <l7:Type>SSG_CONNECTOR</l7:Type>
      <l7:Resource>
        <l7:ListenPort id="` + HTTPSPortID + `">
          <l7:Name>https</l7:Name>
          <l7:Enabled>true</l7:Enabled>
          <l7:Protocol>HTTPS</l7:Protocol>
          <l7:Port>8443</l7:Port>
          <l7:EnabledFeatures>
            <l7:StringValue>Published service message input</l7:StringValue>
          </l7:EnabledFeatures>
        </l7:ListenPort>
      </l7:Resource>
    </l7:Item>
    <l7:Item>
      <l7:Name>admin</l7:Name>
      <l7:Id>` + AdminPortID + `</l7:Id>
      <l7:Type>SSG_CONNECTOR</l7:Type>
      <l7:Resource>
        <l7:ListenPort id="` + AdminPortID + `">
          <l7:Name>admin</l7:Name>
          <l7:Enabled>false</l7:Enabled>
          <l7:Protocol>HTTPS</l7:Protocol>
          <l7:Port>9443</l7:Port>
        </l7:ListenPort>
      </l7:Resource>
    </l7:Item>
    <l7:Item>
      <l7:Name>partner</l7:Name>
      <l7:Id>` + PartnerCertID + `</l7:Id>
      <l7:Type>TRUSTED_CERT</l7:Type>
      <l7:Resource>
        <l7:TrustedCertificate id="` + PartnerCertID + `">
          <l7:Name>partner</l7:Name>
          <l7:CertificateData>
            <l7:IssuerName>CN=test</l7:IssuerName>
            <l7:SerialNumber>17508402313405384881</l7:SerialNumber>
            <l7:SubjectName>CN=test</l7:SubjectName>
            <l7:Encoded>` + Certificate + `</l7:Encoded>
          </l7:CertificateData>
          <l7:Properties>
            <l7:Property key="trustedForSsl"><l7:BooleanValue>true</l7:BooleanValue></l7:Property>
            <l7:Property key="verifyHostname"><l7:BooleanValue>false</l7:BooleanValue></l7:Property>
          </l7:Properties>
        </l7:TrustedCertificate>
      </l7:Resource>
    </l7:Item>
    <l7:Item>
      <l7:Name>cluster.hostname</l7:Name>
      <l7:Id>` + HostnamePropertyID + `</l7:Id>
      <l7:Type>CLUSTER_PROPERTY</l7:Type>
      <l7:Resource>
        <l7:ClusterProperty id="` + HostnamePropertyID + `"><l7:Name>cluster.hostname</l7:Name><l7:Value>gw.example.com</l7:Value></l7:ClusterProperty>
      </l7:Resource>
    </l7:Item>
    <l7:Item>
      <l7:Name>unused.prop</l7:Name>
      <l7:Id>` + UnusedPropertyID + `</l7:Id>
      <l7:Type>CLUSTER_PROPERTY</l7:Type>
      <l7:Resource>
        <l7:ClusterProperty id="` + UnusedPropertyID + `"><l7:Name>unused.prop</l7:Name><l7:Value>1</l7:Value></l7:ClusterProperty>
      </l7:Resource>
    </l7:Item>
    <l7:Item>
      <l7:Name>ssl</l7:Name>
      <l7:Id>` + SSLKeyID + `</l7:Id>
      <l7:Type>SSG_KEY_ENTRY</l7:Type>
      <l7:Resource>
        <l7:PrivateKey alias="ssl" id="` + SSLKeyID + `" keystoreId="00000000000000000000000000000002">
          <l7:CertificateChain>
            <l7:CertificateData>
              <l7:IssuerName>CN=test</l7:IssuerName>
              <l7:SerialNumber>1</l7:SerialNumber>
              <l7:SubjectName>CN=test</l7:SubjectName>
              <l7:Encoded>` + Certificate + `</l7:Encoded>
            </l7:CertificateData>
          </l7:CertificateChain>
          <l7:Properties>
            <l7:Property key="keyAlgorithm"><l7:StringValue>RSA</l7:StringValue></l7:Property>
          </l7:Properties>
        </l7:PrivateKey>
      </l7:Resource>
    </l7:Item>
    <l7:Item>
      <l7:Name>signer</l7:Name>
      <l7:Id>` + SignerKeyID + `</l7:Id>
      <l7:Type>SSG_KEY_ENTRY</l7:Type>
      <l7:Resource>
        <l7:PrivateKey alias="signer" id="` + SignerKeyID + `" keystoreId="00000000000000000000000000000002">
          <l7:CertificateChain>
            <l7:CertificateData><l7:Encoded>` + Certificate + `</l7:Encoded></l7:CertificateData>
          </l7:CertificateChain>
          <l7:Properties>
            <l7:Property key="keyAlgorithm"><l7:StringValue>EC</l7:StringValue></l7:Property>
          </l7:Properties>
        </l7:PrivateKey>
      </l7:Resource>
    </l7:Item>
    <l7:Item>
      <l7:Name>db</l7:Name>
      <l7:Id>` + JDBCConnectionID + `</l7:Id>
      <l7:Type>JDBC_CONNECTION</l7:Type>
      <l7:Resource>
        <l7:JDBCConnection id="` + JDBCConnectionID + `"><l7:Name>db</l7:Name></l7:JDBCConnection>
      </l7:Resource>
    </l7:Item>
    <l7:Item>
      <l7:Name>charge</l7:Name>
      <l7:Id>` + ChargePolicyID + `</l7:Id>
      <l7:Type>POLICY</l7:Type>
      <l7:Resource>
        <l7:Policy folderId="` + BillingFolderID + `" guid="` + ChargeGUID + `" id="` + ChargePolicyID + `">
          <l7:PolicyDetail folderId="` + BillingFolderID + `" guid="` + ChargeGUID + `" id="` + ChargePolicyID + `">
            <l7:Name>charge</l7:Name>
            <l7:PolicyType>Include</l7:PolicyType>
          </l7:PolicyDetail>
          <l7:Resources>
            <l7:ResourceSet tag="policy">
              <l7:Resource type="policy"><![CDATA[` + ChargeBody + `]]></l7:Resource>
            </l7:ResourceSet>
          </l7:Resources>
        </l7:Policy>
      </l7:Resource>
    </l7:Item>
` + policyItem("auth", AuthPolicyID, AuthGUID, LibFolderID, plainBody) +
	policyItem("audit", AuditPolicyID, AuditGUID, LibFolderID, plainBody) +
	policyItem("unused", UnusedPolicyID, UnusedGUID, OtherFolderID, plainBody) + `
    <l7:Item>
      <l7:Name>Audit</l7:Name>
      <l7:Id>` + AuditEncassID + `</l7:Id>
      <l7:Type>ENCAPSULATED_ASSERTION</l7:Type>
      <l7:Resource>
        <l7:EncapsulatedAssertion id="` + AuditEncassID + `">
          <l7:Name>Audit</l7:Name>
          <l7:Guid>` + AuditEncassGUID + `</l7:Guid>
          <l7:PolicyReference id="` + AuditPolicyID + `"/>
          <l7:EncapsulatedArguments>
            <l7:EncapsulatedAssertionArgument>
              <l7:Ordinal>1</l7:Ordinal>
              <l7:ArgumentName>message</l7:ArgumentName>
              <l7:ArgumentType>string</l7:ArgumentType>
              <l7:GuiPrompt>true</l7:GuiPrompt>
            </l7:EncapsulatedAssertionArgument>
          </l7:EncapsulatedArguments>
          <l7:EncapsulatedResults>
            <l7:EncapsulatedAssertionResult>
              <l7:ResultName>audited</l7:ResultName>
              <l7:ResultType>boolean</l7:ResultType>
            </l7:EncapsulatedAssertionResult>
          </l7:EncapsulatedResults>
        </l7:EncapsulatedAssertion>
      </l7:Resource>
    </l7:Item>
    <l7:Item>
      <l7:Name>orders</l7:Name>
      <l7:Id>` + OrdersServiceID + `</l7:Id>
      <l7:Type>SERVICE</l7:Type>
      <l7:Resource>
        <l7:Service id="` + OrdersServiceID + `">
          <l7:ServiceDetail folderId="` + APIFolderID + `" id="` + OrdersServiceID + `">
            <l7:Name>orders</l7:Name>
            <l7:Enabled>true</l7:Enabled>
            <l7:ServiceMappings>
              <l7:HttpMapping>
                <l7:UrlPattern>/orders</l7:UrlPattern>
                <l7:Verbs><l7:Verb>GET</l7:Verb><l7:Verb>POST</l7:Verb></l7:Verbs>
              </l7:HttpMapping>
            </l7:ServiceMappings>
          </l7:ServiceDetail>
          <l7:Resources>
            <l7:ResourceSet tag="policy">
              <l7:Resource type="policy"><![CDATA[` + OrdersBody + `]]></l7:Resource>
            </l7:ResourceSet>
          </l7:Resources>
        </l7:Service>
      </l7:Resource>
    </l7:Item>
  </l7:References>
  <l7:DependencyGraph>
    <l7:Dependency id="` + OrdersServiceID + `" type="SERVICE">
      <l7:Dependency id="` + HostnamePropertyID + `" type="CLUSTER_PROPERTY"/>
      <l7:Dependency id="` + JDBCConnectionID + `" type="JDBC_CONNECTION">
        <l7:Dependency id="` + PartnerCertID + `" type="TRUSTED_CERT"/>
      </l7:Dependency>
    </l7:Dependency>
    <l7:Dependency id="` + AuthPolicyID + `" type="POLICY">
      <l7:Dependency id="` + HTTPSPortID + `" type="SSG_CONNECTOR">
        <l7:Dependency id="` + SSLKeyID + `" type="SSG_KEY_ENTRY"/>
      </l7:Dependency>
    </l7:Dependency>
  </l7:DependencyGraph>
</l7:Bundle>
`

// ChargeBody includes auth, calls the Audit encass and answers with a fixed
// response body "<charged/>"
const ChargeBody = `<?xml version="1.0" encoding="UTF-8"?>
<wsp:Policy xmlns:L7p="http://www.layer7tech.com/ws/policy" xmlns:wsp="http://schemas.xmlsoap.org/ws/2002/12/policy">
  <wsp:All wsp:Usage="Required">
    <L7p:Include>
      <L7p:PolicyGuid stringValue="` + AuthGUID + `"/>
    </L7p:Include>
    <L7p:Encapsulated>
      <L7p:EncapsulatedAssertionConfigGuid stringValue="` + AuditEncassGUID + `"/>
      <L7p:EncapsulatedAssertionConfigName stringValue="Audit"/>
    </L7p:Encapsulated>
    <L7p:HardcodedResponse>
      <L7p:Base64ResponseBody stringValue="PGNoYXJnZWQvPg=="/>
    </L7p:HardcodedResponse>
  </wsp:All>
</wsp:Policy>`

// OrdersBody includes charge
const OrdersBody = `<?xml version="1.0" encoding="UTF-8"?>
<wsp:Policy xmlns:L7p="http://www.layer7tech.com/ws/policy" xmlns:wsp="http://schemas.xmlsoap.org/ws/2002/12/policy">
  <wsp:All wsp:Usage="Required">
    <L7p:Include>
      <L7p:PolicyGuid stringValue="` + ChargeGUID + `"/>
    </L7p:Include>
  </wsp:All>
</wsp:Policy>`

const plainBody = `<wsp:Policy xmlns:L7p="http://www.layer7tech.com/ws/policy" xmlns:wsp="http://schemas.xmlsoap.org/ws/2002/12/policy"><wsp:All wsp:Usage="Required"/></wsp:Policy>`

func policyItem(name, id, guid, folderID, body string) string {
	return `    <l7:Item>
      <l7:Name>` + name + `</l7:Name>
      <l7:Id>` + id + `</l7:Id>
      <l7:Type>POLICY</l7:Type>
      <l7:Resource>
        <l7:Policy folderId="` + folderID + `" guid="` + guid + `" id="` + id + `">
          <l7:PolicyDetail folderId="` + folderID + `" guid="` + guid + `" id="` + id + `">
            <l7:Name>` + name + `</l7:Name>
            <l7:PolicyType>Include</l7:PolicyType>
          </l7:PolicyDetail>
          <l7:Resources>
            <l7:ResourceSet tag="policy">
              <l7:Resource type="policy"><![CDATA[` + body + `]]></l7:Resource>
            </l7:ResourceSet>
          </l7:Resources>
        </l7:Policy>
      </l7:Resource>
    </l7:Item>
`
}

// Reader returns FullBundle as a reader
func Reader() *strings.Reader {
	return strings.NewReader(FullBundle)
}

// Document returns FullBundle parsed
func Document() *etree.Document {
	doc := etree.NewDocument()
	if err := doc.ReadFromString(FullBundle); err != nil {
		panic(err)
	}
	return doc
}
