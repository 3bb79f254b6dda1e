package graphql

// IntrospectionQuery is the standard schema introspection query, with TypeRef
// unwrapping deep enough for the wrapper chains real servers emit.
const IntrospectionQuery = `
query IntrospectionQuery {
  __schema {
    queryType { name }
    mutationType { name }
    subscriptionType { name }
    types {
      kind
      name
      fields(includeDeprecated: true) {
        name
        type { ...TypeRef }
      }
      inputFields {
        name
        type { ...TypeRef }
      }
      interfaces { ...TypeRef }
      possibleTypes { ...TypeRef }
      enumValues(includeDeprecated: true) { name }
    }
    directives {
      name
      description
      locations
    }
  }
}

fragment TypeRef on __Type {
  kind
  name
  ofType {
    kind
    name
    ofType {
      kind
      name
      ofType {
        kind
        name
        ofType {
          kind
          name
          ofType {
            kind
            name
          }
        }
      }
    }
  }
}
`
